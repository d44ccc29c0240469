package repository

import "database/sql"

type OptOutRepositoryInterface interface {
	IsOptedOut(phone string) (bool, error)
	Add(phone, reason string) error
}

type OptOutRepository struct {
	DB *sql.DB
}

var _ OptOutRepositoryInterface = (*OptOutRepository)(nil)

func (r *OptOutRepository) IsOptedOut(phone string) (bool, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM opt_outs WHERE phone=$1`, phone).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Add records a suppression entry. Called only by the opt-out intake worker;
// the dispatch engine never writes here.
func (r *OptOutRepository) Add(phone, reason string) error {
	query := `
        INSERT INTO opt_outs (phone, reason, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (phone) DO NOTHING
    `
	_, err := r.DB.Exec(query, phone, reason)
	return err
}
