package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/launchpadhq/launchpad/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// SQLite serializes writers anyway; a single connection also keeps
	// :memory: databases coherent across goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Row Types
// =============================================================================

// projectRow represents a project row in the database.
type projectRow struct {
	ID            string  `db:"id"`
	OwnerID       string  `db:"owner_id"`
	Name          string  `db:"name"`
	Slug          string  `db:"slug"`
	GitRepoURL    *string `db:"git_repo_url"`
	GitBranch     *string `db:"git_branch"`
	UploadFiles   *string `db:"upload_files"`
	Domain        string  `db:"domain"`
	DeploymentURL string  `db:"deployment_url"`
	Status        string  `db:"status"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

// deploymentRow represents a deployment row in the database.
type deploymentRow struct {
	ID         string  `db:"id"`
	ProjectID  string  `db:"project_id"`
	Status     string  `db:"status"`
	BuildLogs  string  `db:"build_logs"`
	CreatedAt  string  `db:"created_at"`
	DeployedAt *string `db:"deployed_at"`
}

// =============================================================================
// Project Operations
// =============================================================================

func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	return createProject(ctx, s.db, project)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getProject(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, project *domain.Project) error {
	return updateProject(ctx, s.db, project)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	return deleteProject(ctx, s.db, id)
}

func (s *SQLiteStore) ListProjectsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.Project, error) {
	return listProjectsByOwner(ctx, s.db, ownerID, opts)
}

func (s *SQLiteStore) ClaimProjectBuild(ctx context.Context, id string, now time.Time) error {
	return claimProjectBuild(ctx, s.db, id, now)
}

// =============================================================================
// Deployment Operations
// =============================================================================

func (s *SQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.db, deployment)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return updateDeployment(ctx, s.db, deployment)
}

func (s *SQLiteStore) ListDeploymentsByProject(ctx context.Context, projectID string, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByProject(ctx, s.db, projectID, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	return createProject(ctx, s.tx, project)
}

func (s *txSQLiteStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getProject(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateProject(ctx context.Context, project *domain.Project) error {
	return updateProject(ctx, s.tx, project)
}

func (s *txSQLiteStore) DeleteProject(ctx context.Context, id string) error {
	return deleteProject(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListProjectsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.Project, error) {
	return listProjectsByOwner(ctx, s.tx, ownerID, opts)
}

func (s *txSQLiteStore) ClaimProjectBuild(ctx context.Context, id string, now time.Time) error {
	return claimProjectBuild(ctx, s.tx, id, now)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.tx, deployment)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return updateDeployment(ctx, s.tx, deployment)
}

func (s *txSQLiteStore) ListDeploymentsByProject(ctx context.Context, projectID string, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByProject(ctx, s.tx, projectID, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createProject(ctx context.Context, exec executor, project *domain.Project) error {
	row, err := projectToRow(project)
	if err != nil {
		return NewStoreError("CreateProject", "project", project.ID, "failed to serialize upload files", ErrInvalidData)
	}

	query := `
		INSERT INTO projects (
			id, owner_id, name, slug, git_repo_url, git_branch, upload_files,
			domain, deployment_url, status, created_at, updated_at
		) VALUES (
			:id, :owner_id, :name, :slug, :git_repo_url, :git_branch, :upload_files,
			:domain, :deployment_url, :status, :created_at, :updated_at
		)`

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: projects.id") {
			return NewStoreError("CreateProject", "project", project.ID, "project with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateProject", "project", project.ID, err.Error(), err)
	}

	return nil
}

func getProject(ctx context.Context, exec executor, id string) (*domain.Project, error) {
	query := `SELECT * FROM projects WHERE id = ?`

	var row projectRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProject", "project", id, "project not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProject", "project", id, err.Error(), err)
	}

	return rowToProject(&row)
}

func updateProject(ctx context.Context, exec executor, project *domain.Project) error {
	row, err := projectToRow(project)
	if err != nil {
		return NewStoreError("UpdateProject", "project", project.ID, "failed to serialize upload files", ErrInvalidData)
	}

	query := `
		UPDATE projects SET
			owner_id = :owner_id,
			name = :name,
			slug = :slug,
			git_repo_url = :git_repo_url,
			git_branch = :git_branch,
			upload_files = :upload_files,
			domain = :domain,
			deployment_url = :deployment_url,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateProject", "project", project.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateProject", "project", project.ID, "project not found", ErrNotFound)
	}

	return nil
}

func deleteProject(ctx context.Context, exec executor, id string) error {
	// Deployment rows go with the project. The schema declares ON DELETE
	// CASCADE as well; the explicit delete keeps the cascade visible here and
	// independent of the foreign_keys pragma.
	if _, err := exec.ExecContext(ctx, `DELETE FROM deployments WHERE project_id = ?`, id); err != nil {
		return NewStoreError("DeleteProject", "project", id, err.Error(), err)
	}

	result, err := exec.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteProject", "project", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteProject", "project", id, "project not found", ErrNotFound)
	}

	return nil
}

func listProjectsByOwner(ctx context.Context, exec executor, ownerID string, opts ListOptions) ([]domain.Project, error) {
	opts = opts.Normalize()
	// rowid breaks ties between rows created within the same second.
	query := `SELECT * FROM projects WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []projectRow
	err := exec.SelectContext(ctx, &rows, query, ownerID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListProjectsByOwner", "project", "", err.Error(), err)
	}

	projects := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		project, err := rowToProject(&row)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}

	return projects, nil
}

func claimProjectBuild(ctx context.Context, exec executor, id string, now time.Time) error {
	// Single compare-and-set statement: two racing claims cannot both pass
	// the status guard.
	query := `UPDATE projects SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`

	result, err := exec.ExecContext(ctx, query,
		string(domain.ProjectStatusBuilding),
		now.UTC().Format(time.RFC3339),
		id,
		string(domain.ProjectStatusBuilding),
	)
	if err != nil {
		return NewStoreError("ClaimProjectBuild", "project", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Either the project does not exist or it is already building.
		var row projectRow
		err := exec.GetContext(ctx, &row, `SELECT * FROM projects WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return NewStoreError("ClaimProjectBuild", "project", id, "project not found", ErrNotFound)
		}
		if err != nil {
			return NewStoreError("ClaimProjectBuild", "project", id, err.Error(), err)
		}
		return NewStoreError("ClaimProjectBuild", "project", id, "deployment already in flight", ErrAlreadyBuilding)
	}

	return nil
}

func createDeployment(ctx context.Context, exec executor, deployment *domain.Deployment) error {
	query := `
		INSERT INTO deployments (
			id, project_id, status, build_logs, created_at, deployed_at
		) VALUES (
			:id, :project_id, :status, :build_logs, :created_at, :deployed_at
		)`

	_, err := exec.NamedExecContext(ctx, query, deploymentToRow(deployment))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.id") {
			return NewStoreError("CreateDeployment", "deployment", deployment.ID, "deployment with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateDeployment", "deployment", deployment.ID, "project not found", ErrForeignKey)
		}
		return NewStoreError("CreateDeployment", "deployment", deployment.ID, err.Error(), err)
	}

	return nil
}

func getDeployment(ctx context.Context, exec executor, id string) (*domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE id = ?`

	var row deploymentRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", id, err.Error(), err)
	}

	return rowToDeployment(&row), nil
}

func updateDeployment(ctx context.Context, exec executor, deployment *domain.Deployment) error {
	query := `
		UPDATE deployments SET
			project_id = :project_id,
			status = :status,
			build_logs = :build_logs,
			deployed_at = :deployed_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, deploymentToRow(deployment))
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", deployment.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", deployment.ID, "deployment not found", ErrNotFound)
	}

	return nil
}

func listDeploymentsByProject(ctx context.Context, exec executor, projectID string, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM deployments WHERE project_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []deploymentRow
	err := exec.SelectContext(ctx, &rows, query, projectID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListDeploymentsByProject", "deployment", "", err.Error(), err)
	}

	deployments := make([]domain.Deployment, 0, len(rows))
	for _, row := range rows {
		deployments = append(deployments, *rowToDeployment(&row))
	}

	return deployments, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

func projectToRow(project *domain.Project) (map[string]any, error) {
	var gitRepoURL, gitBranch, uploadFiles *string
	if project.Git != nil {
		gitRepoURL = &project.Git.RepoURL
		gitBranch = &project.Git.Branch
	}
	if project.Upload != nil {
		filesJSON, err := json.Marshal(project.Upload.Files)
		if err != nil {
			return nil, err
		}
		s := string(filesJSON)
		uploadFiles = &s
	}

	return map[string]any{
		"id":             project.ID,
		"owner_id":       project.OwnerID,
		"name":           project.Name,
		"slug":           project.Slug,
		"git_repo_url":   gitRepoURL,
		"git_branch":     gitBranch,
		"upload_files":   uploadFiles,
		"domain":         project.Domain,
		"deployment_url": project.DeploymentURL,
		"status":         string(project.Status),
		"created_at":     project.CreatedAt.Format(time.RFC3339),
		"updated_at":     project.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// rowToProject converts a database row to a domain.Project.
func rowToProject(row *projectRow) (*domain.Project, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	var git *domain.GitSource
	if row.GitRepoURL != nil && *row.GitRepoURL != "" {
		branch := ""
		if row.GitBranch != nil {
			branch = *row.GitBranch
		}
		git = &domain.GitSource{RepoURL: *row.GitRepoURL, Branch: branch}
	}

	var upload *domain.UploadSource
	if row.UploadFiles != nil && *row.UploadFiles != "" && *row.UploadFiles != "null" {
		var files []domain.SourceFile
		if err := json.Unmarshal([]byte(*row.UploadFiles), &files); err != nil {
			return nil, NewStoreError("rowToProject", "project", row.ID, "failed to parse upload files", ErrInvalidData)
		}
		upload = &domain.UploadSource{Files: files}
	}

	return &domain.Project{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Name:          row.Name,
		Slug:          row.Slug,
		Git:           git,
		Upload:        upload,
		Domain:        row.Domain,
		DeploymentURL: row.DeploymentURL,
		Status:        domain.ProjectStatus(row.Status),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func deploymentToRow(deployment *domain.Deployment) map[string]any {
	var deployedAt *string
	if deployment.DeployedAt != nil {
		s := deployment.DeployedAt.Format(time.RFC3339)
		deployedAt = &s
	}

	return map[string]any{
		"id":          deployment.ID,
		"project_id":  deployment.ProjectID,
		"status":      string(deployment.Status),
		"build_logs":  deployment.BuildLogs,
		"created_at":  deployment.CreatedAt.Format(time.RFC3339),
		"deployed_at": deployedAt,
	}
}

// rowToDeployment converts a database row to a domain.Deployment.
func rowToDeployment(row *deploymentRow) *domain.Deployment {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	var deployedAt *time.Time
	if row.DeployedAt != nil && *row.DeployedAt != "" {
		t, _ := time.Parse(time.RFC3339, *row.DeployedAt)
		deployedAt = &t
	}

	return &domain.Deployment{
		ID:         row.ID,
		ProjectID:  row.ProjectID,
		Status:     domain.DeploymentStatus(row.Status),
		BuildLogs:  row.BuildLogs,
		CreatedAt:  createdAt,
		DeployedAt: deployedAt,
	}
}
