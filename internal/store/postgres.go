package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"leaflet/api/internal/rbac"
)

var (
	// ErrDuplicate signals a unique-constraint violation (slug or membership).
	ErrDuplicate = errors.New("duplicate record")
	// ErrCycle signals a document move that would make a document its own descendant.
	ErrCycle = errors.New("move would create a cycle")
	// ErrNotAuthorized signals the storage-layer role guard rejected the actor.
	ErrNotAuthorized = errors.New("actor lacks required role")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireRole is the defensive half of the role gate. The service layer
// resolves and checks the actor's role before calling in; every statement
// that touches project data re-checks it here against the members table so a
// bug above this layer cannot write past the role hierarchy.
func requireRole(ctx context.Context, q querier, projectID, actorID string, min rbac.Role) error {
	var role string
	err := q.QueryRowContext(ctx, `
		SELECT role FROM members WHERE project_id=$1 AND user_id=$2
	`, projectID, actorID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotAuthorized
	}
	if err != nil {
		return fmt.Errorf("resolve actor role: %w", err)
	}
	if !rbac.AtLeast(rbac.Role(role), min) {
		return ErrNotAuthorized
	}
	return nil
}

// requireRoleForDocument resolves the document's project first. A missing
// document surfaces as sql.ErrNoRows, not as an authorization failure.
func requireRoleForDocument(ctx context.Context, q querier, documentID, actorID string, min rbac.Role) error {
	var projectID string
	if err := q.QueryRowContext(ctx, `
		SELECT project_id FROM documents WHERE id=$1
	`, documentID).Scan(&projectID); err != nil {
		return err
	}
	return requireRole(ctx, q, projectID, actorID, min)
}

// ---- users ----

func (s *PostgresStore) EnsureUser(ctx context.Context, subject, email, displayName string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, subject, email, display_name)
		VALUES ('usr_' || encode(gen_random_bytes(8), 'hex'), $1, $2, $3)
		ON CONFLICT (subject) DO UPDATE SET email=EXCLUDED.email, display_name=EXCLUDED.display_name
		RETURNING id, subject, email, display_name, created_at
	`, subject, email, displayName).Scan(&user.ID, &user.Subject, &user.Email, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("ensure user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, email, display_name, created_at FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Subject, &user.Email, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subject, email, display_name, created_at FROM users WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.Subject, &user.Email, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ---- projects ----

// InsertProject creates the project and its creator's owner membership in one
// transaction so a project can never exist without an owner.
func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert project: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, slug, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, project.ID, project.Name, project.Slug, project.Description, project.CreatedBy); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project slug %q: %w", project.Slug, ErrDuplicate)
		}
		return fmt.Errorf("insert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO members (project_id, user_id, role)
		VALUES ($1, $2, 'owner')
	`, project.ID, project.CreatedBy); err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, created_by, created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&item.ID, &item.Name, &item.Slug, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.slug, p.description, p.created_by, p.created_at, p.updated_at
		FROM projects p
		JOIN members m ON m.project_id = p.id
		WHERE m.user_id=$1
		ORDER BY p.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.ID, &item.Name, &item.Slug, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, name, description, actorID string) (bool, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleOwner); err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name=$2, description=$3, updated_at=NOW()
		WHERE id=$1
	`, projectID, name, description)
	if err != nil {
		return false, fmt.Errorf("update project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update project rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteProject removes the project and everything it owns in one transaction.
// Cascade is explicit application logic rather than FK triggers so the
// behavior is visible here and testable against the same statements.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID, actorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete project: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, projectID, actorID, rbac.RoleOwner); err != nil {
		return err
	}

	statements := []string{
		`DELETE FROM document_versions WHERE document_id IN (SELECT id FROM documents WHERE project_id=$1)`,
		`DELETE FROM documents WHERE project_id=$1`,
		`DELETE FROM publishes WHERE project_id=$1`,
		`DELETE FROM members WHERE project_id=$1`,
		`DELETE FROM projects WHERE id=$1`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, projectID); err != nil {
			return fmt.Errorf("delete project cascade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete project: %w", err)
	}
	return nil
}

// ---- members ----

func (s *PostgresStore) GetMember(ctx context.Context, projectID, userID string) (Member, error) {
	var item Member
	err := s.db.QueryRowContext(ctx, `
		SELECT project_id, user_id, role, created_at
		FROM members WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&item.ProjectID, &item.UserID, &item.Role, &item.CreatedAt)
	if err != nil {
		return Member{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, projectID, actorID string) ([]Member, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.project_id, m.user_id, m.role, m.created_at, u.email, u.display_name
		FROM members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id=$1
		ORDER BY m.created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var item Member
		if err := rows.Scan(&item.ProjectID, &item.UserID, &item.Role, &item.CreatedAt, &item.UserEmail, &item.UserName); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMember(ctx context.Context, member Member, actorID string) error {
	if err := requireRole(ctx, s.db, member.ProjectID, actorID, rbac.RoleOwner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`, member.ProjectID, member.UserID, member.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("membership exists: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMemberRole(ctx context.Context, projectID, userID, role, actorID string) (bool, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleOwner); err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE members SET role=$3 WHERE project_id=$1 AND user_id=$2
	`, projectID, userID, role)
	if err != nil {
		return false, fmt.Errorf("update member role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update member role rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteMember(ctx context.Context, projectID, userID, actorID string) (bool, error) {
	if actorID == userID {
		// Self-removal: any member may leave, except an owner.
		var role string
		err := s.db.QueryRowContext(ctx, `
			SELECT role FROM members WHERE project_id=$1 AND user_id=$2
		`, projectID, actorID).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolve actor role: %w", err)
		}
		if rbac.Role(role) == rbac.RoleOwner {
			return false, ErrNotAuthorized
		}
	} else if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleOwner); err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM members WHERE project_id=$1 AND user_id=$2
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("delete member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete member rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CountOwners(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM members WHERE project_id=$1 AND role='owner'
	`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return count, nil
}

// ---- documents ----

const documentColumns = `id, project_id, parent_id, title, content, is_folder, is_published, sort_order, created_by, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID,
		&item.ProjectID,
		&item.ParentID,
		&item.Title,
		&item.Content,
		&item.IsFolder,
		&item.IsPublished,
		&item.SortOrder,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListDocuments(ctx context.Context, projectID, actorID string) ([]Document, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE project_id=$1
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id=$1
	`, documentID))
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

// InsertDocument assigns sort_order as max sibling order + 1 (0 for an empty
// sibling set) inside a transaction holding the project's advisory lock, so
// concurrent creates in one project never race on the same slot.
func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) (Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("begin insert document: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, item.ProjectID, item.CreatedBy, rbac.RoleEditor); err != nil {
		return Document{}, err
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, item.ProjectID); err != nil {
		return Document{}, fmt.Errorf("lock project: %w", err)
	}

	inserted, err := scanDocument(tx.QueryRowContext(ctx, `
		INSERT INTO documents (id, project_id, parent_id, title, content, is_folder, is_published, sort_order, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, false,
			(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM documents
			 WHERE project_id=$2 AND parent_id IS NOT DISTINCT FROM $3),
			$7)
		RETURNING `+documentColumns+`
	`, item.ID, item.ProjectID, item.ParentID, item.Title, item.Content, item.IsFolder, item.CreatedBy))
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("commit insert document: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) UpdateDocumentTitle(ctx context.Context, documentID, title, actorID string) (bool, error) {
	if err := requireRoleForDocument(ctx, s.db, documentID, actorID, rbac.RoleEditor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET title=$2, updated_at=NOW() WHERE id=$1
	`, documentID, title)
	if err != nil {
		return false, fmt.Errorf("update document title: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update document title rows: %w", err)
	}
	return affected > 0, nil
}

// SetDocumentContent updates content and appends a version snapshot in one
// transaction. The version number is assigned under a row lock on the
// document, so concurrent saves never collide on the same number.
func (s *PostgresStore) SetDocumentContent(ctx context.Context, documentID, content, authorID string) (DocumentVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DocumentVersion{}, fmt.Errorf("begin set content: %w", err)
	}
	defer tx.Rollback()

	if err := requireRoleForDocument(ctx, tx, documentID, authorID, rbac.RoleEditor); err != nil {
		return DocumentVersion{}, err
	}

	var locked string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id=$1 FOR UPDATE`, documentID).Scan(&locked); err != nil {
		return DocumentVersion{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET content=$2, updated_at=NOW() WHERE id=$1
	`, documentID, content); err != nil {
		return DocumentVersion{}, fmt.Errorf("update document content: %w", err)
	}

	var version DocumentVersion
	err = tx.QueryRowContext(ctx, `
		INSERT INTO document_versions (document_id, version_number, content, created_by)
		VALUES ($1,
			(SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id=$1),
			$2, $3)
		RETURNING id, document_id, version_number, content, created_by, created_at
	`, documentID, content, authorID).Scan(
		&version.ID, &version.DocumentID, &version.VersionNumber, &version.Content, &version.CreatedBy, &version.CreatedAt,
	)
	if err != nil {
		return DocumentVersion{}, fmt.Errorf("append document version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DocumentVersion{}, fmt.Errorf("commit set content: %w", err)
	}
	return version, nil
}

// MoveDocument reparents a document after re-validating, under the project
// advisory lock, that the new parent is not the document itself or one of its
// descendants. The recursive walk mirrors the service-side check; it runs
// again here so a concurrent move cannot slip a cycle past the first check.
func (s *PostgresStore) MoveDocument(ctx context.Context, projectID, documentID string, newParentID *string, newSortOrder int, actorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move document: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, projectID, actorID, rbac.RoleEditor); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, projectID); err != nil {
		return fmt.Errorf("lock project: %w", err)
	}

	if newParentID != nil {
		var cycle bool
		err := tx.QueryRowContext(ctx, `
			WITH RECURSIVE ancestors AS (
				SELECT id, parent_id FROM documents WHERE id=$1 AND project_id=$3
				UNION ALL
				SELECT d.id, d.parent_id FROM documents d
				JOIN ancestors a ON d.id = a.parent_id
			)
			SELECT EXISTS(SELECT 1 FROM ancestors WHERE id=$2)
		`, *newParentID, documentID, projectID).Scan(&cycle)
		if err != nil {
			return fmt.Errorf("check move cycle: %w", err)
		}
		if cycle {
			return ErrCycle
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE documents SET parent_id=$2, sort_order=$3, updated_at=NOW()
		WHERE id=$1 AND project_id=$4
	`, documentID, newParentID, newSortOrder, projectID)
	if err != nil {
		return fmt.Errorf("move document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("move document rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move document: %w", err)
	}
	return nil
}

// DeleteDocumentTree removes a document and its whole subtree, plus their
// version history, as one transaction. Returns how many documents went away.
func (s *PostgresStore) DeleteDocumentTree(ctx context.Context, projectID, documentID, actorID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete document: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, projectID, actorID, rbac.RoleEditor); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, projectID); err != nil {
		return 0, fmt.Errorf("lock project: %w", err)
	}

	const subtree = `
		WITH RECURSIVE subtree AS (
			SELECT id FROM documents WHERE id=$1 AND project_id=$2
			UNION ALL
			SELECT d.id FROM documents d
			JOIN subtree s ON d.parent_id = s.id
		)
		SELECT id FROM subtree
	`

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM document_versions WHERE document_id IN (`+subtree+`)
	`, documentID, projectID); err != nil {
		return 0, fmt.Errorf("delete subtree versions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM documents WHERE id IN (`+subtree+`)
	`, documentID, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete subtree: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete subtree rows: %w", err)
	}
	if affected == 0 {
		return 0, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete document: %w", err)
	}
	return int(affected), nil
}

// ToggleDocumentPublished flips is_published in one statement, so concurrent
// toggles serialize on the row instead of reading a stale flag. Folders are
// never flipped.
func (s *PostgresStore) ToggleDocumentPublished(ctx context.Context, documentID, actorID string) (bool, error) {
	if err := requireRoleForDocument(ctx, s.db, documentID, actorID, rbac.RoleEditor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET is_published = NOT is_published, updated_at=NOW()
		WHERE id=$1 AND is_folder=false
	`, documentID)
	if err != nil {
		return false, fmt.Errorf("toggle document published: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle document published rows: %w", err)
	}
	return affected > 0, nil
}

// ListPublishedDocuments returns the publish snapshot selection: non-folder
// documents flagged published, in deterministic sibling order. Read once at
// the start of a publish run.
func (s *PostgresStore) ListPublishedDocuments(ctx context.Context, projectID, actorID string) ([]Document, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE project_id=$1 AND is_folder=false AND is_published=true
		ORDER BY sort_order ASC, created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list published documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan published document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate published documents: %w", err)
	}
	return items, nil
}

// ---- versions ----

func (s *PostgresStore) ListDocumentVersions(ctx context.Context, documentID, actorID string) ([]DocumentVersion, error) {
	if err := requireRoleForDocument(ctx, s.db, documentID, actorID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, version_number, content, created_by, created_at
		FROM document_versions
		WHERE document_id=$1
		ORDER BY version_number DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentVersion, 0)
	for rows.Next() {
		var item DocumentVersion
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.VersionNumber, &item.Content, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}
	return items, nil
}

// ---- publishes ----

func (s *PostgresStore) InsertPublish(ctx context.Context, item Publish) error {
	documents := item.Documents
	if documents == nil {
		documents = []PublishedDocument{}
	}
	encoded, err := json.Marshal(documents)
	if err != nil {
		return fmt.Errorf("marshal publish documents: %w", err)
	}
	if err := requireRole(ctx, s.db, item.ProjectID, item.PublishedBy, rbac.RoleEditor); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO publishes (id, project_id, version, storage_path, preview_url, published_by, document_count, documents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, item.ID, item.ProjectID, item.Version, item.StoragePath, item.PreviewURL, item.PublishedBy, item.DocumentCount, string(encoded))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("publish version %q: %w", item.Version, ErrDuplicate)
		}
		return fmt.Errorf("insert publish: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPublishes(ctx context.Context, projectID, actorID string) ([]Publish, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, version, storage_path, preview_url, published_by, document_count, documents, created_at
		FROM publishes
		WHERE project_id=$1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list publishes: %w", err)
	}
	defer rows.Close()

	items := make([]Publish, 0)
	for rows.Next() {
		var item Publish
		var documentsRaw []byte
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Version, &item.StoragePath, &item.PreviewURL, &item.PublishedBy, &item.DocumentCount, &documentsRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan publish: %w", err)
		}
		if err := json.Unmarshal(documentsRaw, &item.Documents); err != nil {
			return nil, fmt.Errorf("decode publish documents: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publishes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPublishByVersion(ctx context.Context, projectID, version, actorID string) (Publish, error) {
	if err := requireRole(ctx, s.db, projectID, actorID, rbac.RoleViewer); err != nil {
		return Publish{}, err
	}
	var item Publish
	var documentsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, version, storage_path, preview_url, published_by, document_count, documents, created_at
		FROM publishes
		WHERE project_id=$1 AND version=$2
	`, projectID, version).Scan(&item.ID, &item.ProjectID, &item.Version, &item.StoragePath, &item.PreviewURL, &item.PublishedBy, &item.DocumentCount, &documentsRaw, &item.CreatedAt)
	if err != nil {
		return Publish{}, err
	}
	if err := json.Unmarshal(documentsRaw, &item.Documents); err != nil {
		return Publish{}, fmt.Errorf("decode publish documents: %w", err)
	}
	return item, nil
}
