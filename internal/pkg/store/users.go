package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// User is one account in the users table. The email doubles as the login of
// the REST API; APIKey is its shared secret.
type User struct {
	MilaEmailUsername   string  `json:"mila_email_username"`
	APIKey              string  `json:"-"`
	Status              string  `json:"status"`
	MilaClusterUsername *string `json:"mila_cluster_username"`
	CCAccountUsername   *string `json:"cc_account_username"`
}

// GetUserByEmail returns the user with the given email, ErrNotFound when no
// such user exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT mila_email_username, api_key, status, mila_cluster_username, cc_account_username
		 FROM users WHERE mila_email_username = $1`, email).
		Scan(&u.MilaEmailUsername, &u.APIKey, &u.Status, &u.MilaClusterUsername, &u.CCAccountUsername)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	return &u, nil
}

// AssociateUsers fills cw.mila_email_username on jobs whose scraped username
// matches a known user in the cluster's identity namespace. Jobs that
// already carry an email are left alone, so a manual correction is never
// undone by the next scrape.
func (s *Store) AssociateUsers(ctx context.Context, clusterName, accountField string) (int64, error) {
	// The column name is interpolated, so only the two known namespaces are
	// accepted.
	switch accountField {
	case record.AccountFieldMila, record.AccountFieldCC:
	default:
		return 0, fmt.Errorf("associate users: unknown account field %q", accountField)
	}

	sql := fmt.Sprintf(`
		UPDATE jobs
		SET cw = jsonb_set(cw, '{mila_email_username}', to_jsonb(u.mila_email_username))
		FROM users u
		WHERE jobs.cluster_name = $1
		  AND jobs.cw->>'mila_email_username' IS NULL
		  AND u.status = 'enabled'
		  AND u.%s = jobs.slurm->>'username'`, accountField)

	tag, err := s.pool.Exec(ctx, sql, clusterName)
	if err != nil {
		return 0, fmt.Errorf("associate users on %s: %w", clusterName, err)
	}
	return tag.RowsAffected(), nil
}
