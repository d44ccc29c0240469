package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fidelize/fidelize-backend/internal/model"
)

// CustomerRepositoryInterface is the eligibility source for recipient queues.
type CustomerRepositoryInterface interface {
	GetByID(id int) (*model.Customer, error)
	ListEligible(minVisits int, checkedInSince *time.Time) ([]model.Customer, error)
}

type CustomerRepository struct {
	DB *sql.DB
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)

func (r *CustomerRepository) GetByID(id int) (*model.Customer, error) {
	query := `
        SELECT id, phone, name, visits, last_checkin_at
        FROM customers
        WHERE id = $1
    `
	var c model.Customer
	if err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.Phone, &c.Name, &c.Visits, &c.LastCheckinAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListEligible returns the (phone, name) population for a campaign. The query
// logic stays deliberately simple: visit count floor plus an optional
// last-check-in cutoff.
func (r *CustomerRepository) ListEligible(minVisits int, checkedInSince *time.Time) ([]model.Customer, error) {
	query := `
        SELECT id, phone, name, visits, last_checkin_at
        FROM customers
        WHERE visits >= $1
    `
	args := []interface{}{minVisits}
	if checkedInSince != nil {
		query += fmt.Sprintf(" AND last_checkin_at >= $%d", len(args)+1)
		args = append(args, *checkedInSince)
	}
	query += " ORDER BY id"

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &c.Visits, &c.LastCheckinAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
