package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"leaflet/api/internal/auth"
	"leaflet/api/internal/export"
	"leaflet/api/internal/publish"
	"leaflet/api/internal/rbac"
	"leaflet/api/internal/search"
	"leaflet/api/internal/store"
	"leaflet/api/internal/tree"
	"leaflet/api/internal/util"
)

// Session is the resolved caller for one request. The user row is ensured on
// first sight of a new subject, so every session maps to a stored user.
type Session struct {
	UserID string
	Email  string
	Name   string
}

type dataStore interface {
	EnsureUser(context.Context, string, string, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjectsForUser(context.Context, string) ([]store.Project, error)
	UpdateProject(context.Context, string, string, string, string) (bool, error)
	DeleteProject(context.Context, string, string) error
	GetMember(context.Context, string, string) (store.Member, error)
	ListMembers(context.Context, string, string) ([]store.Member, error)
	InsertMember(context.Context, store.Member, string) error
	UpdateMemberRole(context.Context, string, string, string, string) (bool, error)
	DeleteMember(context.Context, string, string, string) (bool, error)
	CountOwners(context.Context, string) (int, error)
	ListDocuments(context.Context, string, string) ([]store.Document, error)
	GetDocument(context.Context, string) (store.Document, error)
	InsertDocument(context.Context, store.Document) (store.Document, error)
	UpdateDocumentTitle(context.Context, string, string, string) (bool, error)
	SetDocumentContent(context.Context, string, string, string) (store.DocumentVersion, error)
	MoveDocument(context.Context, string, string, *string, int, string) error
	DeleteDocumentTree(context.Context, string, string, string) (int, error)
	ToggleDocumentPublished(context.Context, string, string) (bool, error)
	ListPublishedDocuments(context.Context, string, string) ([]store.Document, error)
	ListDocumentVersions(context.Context, string, string) ([]store.DocumentVersion, error)
	InsertPublish(context.Context, store.Publish) error
	ListPublishes(context.Context, string, string) ([]store.Publish, error)
	GetPublishByVersion(context.Context, string, string, string) (store.Publish, error)
	Ping(ctx context.Context) error
}

type publishRunner interface {
	Run(context.Context, publish.Input) (publish.Result, error)
}

type bundleReader interface {
	GetBundle(ctx context.Context, key string) (io.ReadCloser, error)
}

type searcher interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

type latestCache interface {
	GetLatest(ctx context.Context, projectID string) (store.Publish, error)
	SetLatest(ctx context.Context, projectID string, publish store.Publish) error
	Invalidate(ctx context.Context, projectID string) error
}

type documentExporter interface {
	Export(req export.Request) (*export.Result, error)
}

type Service struct {
	store     dataStore
	publisher publishRunner
	bundles   bundleReader
	search    searcher
	cache     latestCache
	exporter  documentExporter
}

// New wires the service. search and cache may be nil when those backends are
// not configured; the affected operations degrade rather than fail.
func New(dataStore dataStore, publisher publishRunner, bundles bundleReader, searchSvc searcher, cache latestCache, exporter documentExporter) *Service {
	return &Service{
		store:     dataStore,
		publisher: publisher,
		bundles:   bundles,
		search:    searchSvc,
		cache:     cache,
		exporter:  exporter,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SessionFromIdentity upserts the user row for a verified identity and
// returns the request session.
func (s *Service) SessionFromIdentity(ctx context.Context, identity auth.Identity) (Session, error) {
	user, err := s.store.EnsureUser(ctx, identity.Subject, identity.Email, identity.Name)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: user.ID, Email: user.Email, Name: user.DisplayName}, nil
}

// resolveRole loads the caller's role in a project. A missing project is a
// 404; an existing project without a membership row is a 403.
func (s *Service) resolveRole(ctx context.Context, projectID, userID string) (store.Project, rbac.Role, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, "", errNotFound("Project")
	}
	if err != nil {
		return store.Project{}, "", err
	}
	member, err := s.store.GetMember(ctx, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Project{}, "", errNotAuthorized()
	}
	if err != nil {
		return store.Project{}, "", err
	}
	return project, rbac.Role(member.Role), nil
}

func (s *Service) requireRole(ctx context.Context, projectID, userID string, min rbac.Role) (store.Project, rbac.Role, error) {
	project, role, err := s.resolveRole(ctx, projectID, userID)
	if err != nil {
		return store.Project{}, "", err
	}
	if !rbac.AtLeast(role, min) {
		return store.Project{}, "", errNotAuthorized()
	}
	return project, role, nil
}

// ── Projects ──

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in CreateProjectInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
	)
}

func (s *Service) CreateProject(ctx context.Context, session Session, in CreateProjectInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, errValidation("Invalid project", err)
	}

	project := store.Project{
		ID:          util.NewID("prj_"),
		Name:        strings.TrimSpace(in.Name),
		Slug:        publish.Slugify(in.Name),
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   session.UserID,
	}
	if project.Slug == "" {
		project.Slug = strings.TrimPrefix(project.ID, "prj_")
	}

	err := s.store.InsertProject(ctx, project)
	if errors.Is(err, store.ErrDuplicate) {
		// Slug taken: retry once with a random suffix.
		project.Slug = project.Slug + "-" + util.ShortID()
		err = s.store.InsertProject(ctx, project)
	}
	if err != nil {
		return nil, err
	}

	created, err := s.store.GetProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"project": projectPayload(created, rbac.RoleOwner)}, nil
}

func (s *Service) ListProjects(ctx context.Context, session Session) (map[string]any, error) {
	projects, err := s.store.ListProjectsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		member, err := s.store.GetMember(ctx, project.ID, session.UserID)
		if err != nil {
			return nil, err
		}
		items = append(items, projectPayload(project, rbac.Role(member.Role)))
	}
	return map[string]any{"projects": items}, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, role, err := s.resolveRole(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	memberItems := make([]map[string]any, 0, len(members))
	for _, member := range members {
		memberItems = append(memberItems, memberPayload(member))
	}
	payload := projectPayload(project, role)
	payload["members"] = memberItems
	return map[string]any{"project": payload}, nil
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID string, in CreateProjectInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, errValidation("Invalid project", err)
	}
	if _, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleOwner); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateProject(ctx, projectID, strings.TrimSpace(in.Name), strings.TrimSpace(in.Description), session.UserID)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errNotFound("Project")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"project": projectPayload(project, rbac.RoleOwner)}, nil
}

func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	if _, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleOwner); err != nil {
		return err
	}

	// Collect document ids before the cascade so the search index can be
	// cleaned afterwards.
	documents, err := s.store.ListDocuments(ctx, projectID, session.UserID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteProject(ctx, projectID, session.UserID); err != nil {
		return err
	}

	if s.search != nil {
		for _, doc := range documents {
			s.search.DeleteDocument(doc.ID)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, projectID); err != nil {
			slog.Warn("invalidate publish cache", "project_id", projectID, "error", err)
		}
	}
	return nil
}

// ── Members ──

type InviteMemberInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (in InviteMemberInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Role, validation.Required),
	)
}

func (s *Service) InviteMember(ctx context.Context, session Session, projectID string, in InviteMemberInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, errValidation("Invalid invite", err)
	}
	if !rbac.Valid(rbac.Role(in.Role)) {
		return nil, errValidation("role must be owner, editor, or viewer", nil)
	}
	if _, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleOwner); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("User")
	}
	if err != nil {
		return nil, err
	}

	err = s.store.InsertMember(ctx, store.Member{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      in.Role,
	}, session.UserID)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, errConflict("User is already a member of this project")
	}
	if err != nil {
		return nil, err
	}

	member, err := s.store.GetMember(ctx, projectID, user.ID)
	if err != nil {
		return nil, err
	}
	member.UserEmail = user.Email
	member.UserName = user.DisplayName
	return map[string]any{"member": memberPayload(member)}, nil
}

func (s *Service) ListProjectMembers(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(members))
	for _, member := range members {
		items = append(items, memberPayload(member))
	}
	return map[string]any{"members": items}, nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, session Session, projectID, userID, role string) (map[string]any, error) {
	if !rbac.Valid(rbac.Role(role)) {
		return nil, errValidation("role must be owner, editor, or viewer", nil)
	}
	project, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleOwner)
	if err != nil {
		return nil, err
	}
	if userID == project.CreatedBy && rbac.Role(role) != rbac.RoleOwner {
		return nil, errInvalidOperation("The project creator's role cannot be changed")
	}

	current, err := s.store.GetMember(ctx, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("Member")
	}
	if err != nil {
		return nil, err
	}

	// Demoting the last owner would strand the project.
	if rbac.Role(current.Role) == rbac.RoleOwner && rbac.Role(role) != rbac.RoleOwner {
		owners, err := s.store.CountOwners(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, errInvalidOperation("A project must keep at least one owner")
		}
	}

	updated, err := s.store.UpdateMemberRole(ctx, projectID, userID, role, session.UserID)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errNotFound("Member")
	}
	member, err := s.store.GetMember(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(member)}, nil
}

func (s *Service) RemoveMember(ctx context.Context, session Session, projectID, userID string) error {
	if userID == session.UserID {
		// Any member may leave a project on their own, except an owner.
		_, role, err := s.resolveRole(ctx, projectID, session.UserID)
		if err != nil {
			return err
		}
		if role == rbac.RoleOwner {
			return errInvalidOperation("Owners cannot remove themselves")
		}
		removed, err := s.store.DeleteMember(ctx, projectID, userID, session.UserID)
		if err != nil {
			return err
		}
		if !removed {
			return errNotFound("Member")
		}
		return nil
	}

	project, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleOwner)
	if err != nil {
		return err
	}
	if userID == project.CreatedBy {
		return errInvalidOperation("The project creator cannot be removed")
	}

	removed, err := s.store.DeleteMember(ctx, projectID, userID, session.UserID)
	if err != nil {
		return err
	}
	if !removed {
		return errNotFound("Member")
	}
	return nil
}

// ── Documents ──

type CreateDocumentInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
	IsFolder bool    `json:"isFolder"`
}

func (in CreateDocumentInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 300)),
	)
}

func (s *Service) CreateDocument(ctx context.Context, session Session, projectID string, in CreateDocumentInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, errValidation("Invalid document", err)
	}
	if in.IsFolder && strings.TrimSpace(in.Content) != "" {
		return nil, errInvalidOperation("Folders cannot have content")
	}
	if _, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleEditor); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.store.GetDocument(ctx, *in.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errInvalidParent("Parent document does not exist")
		}
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != projectID {
			return nil, errInvalidParent("Parent belongs to a different project")
		}
		if !parent.IsFolder {
			return nil, errInvalidParent("Parent must be a folder")
		}
	}

	created, err := s.store.InsertDocument(ctx, store.Document{
		ID:        util.NewID("doc_"),
		ProjectID: projectID,
		ParentID:  in.ParentID,
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		IsFolder:  in.IsFolder,
		CreatedBy: session.UserID,
	})
	if err != nil {
		return nil, err
	}

	if s.search != nil && !created.IsFolder {
		s.search.IndexDocument(search.DocumentRecord{
			ID:        created.ID,
			Title:     created.Title,
			Content:   created.Content,
			ProjectID: created.ProjectID,
		})
	}
	return map[string]any{"document": documentPayload(created)}, nil
}

func (s *Service) ListDocumentTree(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	documents, err := s.store.ListDocuments(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tree": treePayload(tree.Build(documents))}, nil
}

func (s *Service) ListDocuments(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	documents, err := s.store.ListDocuments(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(documents))
	for _, doc := range documents {
		items = append(items, documentPayload(doc))
	}
	return map[string]any{"documents": items}, nil
}

// documentForUpdate loads a document and checks the caller holds min on its
// project. Used by every single-document operation.
func (s *Service) documentForUpdate(ctx context.Context, session Session, documentID string, min rbac.Role) (store.Document, store.Project, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.Project{}, errNotFound("Document")
	}
	if err != nil {
		return store.Document{}, store.Project{}, err
	}
	project, _, err := s.requireRole(ctx, doc.ProjectID, session.UserID, min)
	if err != nil {
		return store.Document{}, store.Project{}, err
	}
	return doc, project, nil
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleViewer)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": documentPayload(doc)}, nil
}

type UpdateDocumentInput struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, in UpdateDocumentInput) (map[string]any, error) {
	if in.Title == nil && in.Content == nil {
		return nil, errValidation("Nothing to update", nil)
	}
	doc, _, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleEditor)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, errValidation("title must not be empty", nil)
		}
		if _, err := s.store.UpdateDocumentTitle(ctx, documentID, title, session.UserID); err != nil {
			return nil, err
		}
	}

	if in.Content != nil {
		if doc.IsFolder {
			return nil, errInvalidOperation("Folders have no content")
		}
		version, err := s.store.SetDocumentContent(ctx, documentID, *in.Content, session.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Document")
		}
		if err != nil {
			return nil, err
		}
		payload["version"] = versionPayload(version)
	}

	updated, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	payload["document"] = documentPayload(updated)

	if s.search != nil && !updated.IsFolder {
		s.search.IndexDocument(search.DocumentRecord{
			ID:        updated.ID,
			Title:     updated.Title,
			Content:   updated.Content,
			ProjectID: updated.ProjectID,
		})
	}
	return payload, nil
}

type MoveDocumentInput struct {
	ParentID  *string `json:"parentId"`
	SortOrder *int    `json:"sortOrder"`
}

func (s *Service) MoveDocument(ctx context.Context, session Session, documentID string, in MoveDocumentInput) (map[string]any, error) {
	doc, _, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleEditor)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		if *in.ParentID == documentID {
			return nil, errCycle()
		}
		parent, err := s.store.GetDocument(ctx, *in.ParentID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errInvalidParent("Parent document does not exist")
		}
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != doc.ProjectID {
			return nil, errInvalidParent("Parent belongs to a different project")
		}
	}

	documents, err := s.store.ListDocuments(ctx, doc.ProjectID, session.UserID)
	if err != nil {
		return nil, err
	}
	if tree.WouldCreateCycle(documents, documentID, in.ParentID) {
		return nil, errCycle()
	}

	sortOrder := tree.NextSortOrder(documents, in.ParentID)
	if in.SortOrder != nil && *in.SortOrder >= 0 {
		sortOrder = *in.SortOrder
	}

	err = s.store.MoveDocument(ctx, doc.ProjectID, documentID, in.ParentID, sortOrder, session.UserID)
	if errors.Is(err, store.ErrCycle) {
		return nil, errCycle()
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound("Document")
	}
	if err != nil {
		return nil, err
	}

	moved, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": documentPayload(moved)}, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleEditor)
	if err != nil {
		return nil, err
	}

	documents, err := s.store.ListDocuments(ctx, doc.ProjectID, session.UserID)
	if err != nil {
		return nil, err
	}
	subtree := tree.SubtreeIDs(documents, documentID)

	deleted, err := s.store.DeleteDocumentTree(ctx, doc.ProjectID, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if deleted == 0 {
		return nil, errNotFound("Document")
	}

	if s.search != nil {
		for _, id := range subtree {
			s.search.DeleteDocument(id)
		}
	}
	return map[string]any{"deleted": deleted}, nil
}

// TogglePublish flips the document's published flag. The flip itself happens
// in the store as a single statement, so two racing toggles always land on a
// consistent end state.
func (s *Service) TogglePublish(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleEditor)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder {
		return nil, errInvalidOperation("Folders cannot be published")
	}

	if _, err := s.store.ToggleDocumentPublished(ctx, documentID, session.UserID); err != nil {
		return nil, err
	}
	updated, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"document": documentPayload(updated)}, nil
}

func (s *Service) ListVersions(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	doc, _, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleViewer)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder {
		return nil, errInvalidOperation("Folders have no version history")
	}
	versions, err := s.store.ListDocumentVersions(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		items = append(items, versionPayload(version))
	}
	return map[string]any{"versions": items}, nil
}

func (s *Service) ExportDocument(ctx context.Context, session Session, documentID string, format export.Format) (*export.Result, error) {
	doc, project, err := s.documentForUpdate(ctx, session, documentID, rbac.RoleViewer)
	if err != nil {
		return nil, err
	}
	if doc.IsFolder {
		return nil, errInvalidOperation("Folders cannot be exported")
	}
	result, err := s.exporter.Export(export.Request{
		DocumentTitle: doc.Title,
		ProjectName:   project.Name,
		Content:       doc.Content,
		Format:        format,
	})
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return nil, errValidation("format must be 'pdf' or 'html'", nil)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ── Search ──

func (s *Service) SearchDocuments(ctx context.Context, session Session, projectID, query string, limit, offset int) (search.Response, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return search.Response{}, err
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query}, nil
	}
	return s.search.Search(search.Query{
		Text:      query,
		ProjectID: projectID,
		Limit:     limit,
		Offset:    offset,
	}), nil
}

// ── Publishing ──

// PublishProject snapshots the published selection, runs the pipeline, and
// records the result. The Publish row is written only after the bundle is
// uploaded, so a failed run leaves no trace beyond an orphaned object.
func (s *Service) PublishProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, _, err := s.requireRole(ctx, projectID, session.UserID, rbac.RoleEditor)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.ListPublishedDocuments(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.publisher.Run(ctx, publish.Input{
		ProjectID:   projectID,
		ProjectName: project.Name,
		Documents:   snapshot,
	})
	if errors.Is(err, publish.ErrNothingToPublish) {
		return nil, errNothingToPublish()
	}
	if err != nil {
		slog.Error("publish pipeline failed", "project_id", projectID, "error", err)
		return nil, errPublishFailed("Publish failed, no version was recorded")
	}

	record := store.Publish{
		ID:            util.NewID("pub_"),
		ProjectID:     projectID,
		Version:       result.Version,
		StoragePath:   result.StoragePath,
		PreviewURL:    result.PreviewURL,
		PublishedBy:   session.UserID,
		DocumentCount: result.DocumentCount,
		Documents:     result.Documents,
	}
	if err := s.store.InsertPublish(ctx, record); err != nil {
		slog.Error("record publish failed", "project_id", projectID, "version", result.Version, "error", err)
		return nil, errPublishFailed("Publish failed, no version was recorded")
	}

	stored, err := s.store.GetPublishByVersion(ctx, projectID, result.Version, session.UserID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, projectID, stored); err != nil {
			slog.Warn("cache latest publish", "project_id", projectID, "error", err)
		}
	}
	return map[string]any{"publish": publishPayload(stored)}, nil
}

func (s *Service) ListPublishes(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	publishes, err := s.store.ListPublishes(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(publishes))
	for _, item := range publishes {
		items = append(items, publishPayload(item))
	}
	return map[string]any{"publishes": items}, nil
}

func (s *Service) LatestPublish(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		cached, err := s.cache.GetLatest(ctx, projectID)
		if err == nil {
			return map[string]any{"publish": publishPayload(cached)}, nil
		}
	}
	publishes, err := s.store.ListPublishes(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	if len(publishes) == 0 {
		return nil, errNotFound("Publish")
	}
	latest := publishes[0]
	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, projectID, latest); err != nil {
			slog.Warn("cache latest publish", "project_id", projectID, "error", err)
		}
	}
	return map[string]any{"publish": publishPayload(latest)}, nil
}

// PublishBundle streams the archived site for one published version.
func (s *Service) PublishBundle(ctx context.Context, session Session, projectID, version string) (io.ReadCloser, string, error) {
	if _, _, err := s.resolveRole(ctx, projectID, session.UserID); err != nil {
		return nil, "", err
	}
	record, err := s.store.GetPublishByVersion(ctx, projectID, version, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", errNotFound("Publish")
	}
	if err != nil {
		return nil, "", err
	}
	body, err := s.bundles.GetBundle(ctx, record.StoragePath)
	if err != nil {
		return nil, "", err
	}
	return body, record.Version + ".zip", nil
}

// ── Payload shaping ──

func projectPayload(project store.Project, role rbac.Role) map[string]any {
	return map[string]any{
		"id":          project.ID,
		"name":        project.Name,
		"slug":        project.Slug,
		"description": project.Description,
		"createdBy":   project.CreatedBy,
		"role":        string(role),
		"createdAt":   project.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   project.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func memberPayload(member store.Member) map[string]any {
	return map[string]any{
		"userId":    member.UserID,
		"email":     member.UserEmail,
		"name":      member.UserName,
		"role":      member.Role,
		"createdAt": member.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func documentPayload(doc store.Document) map[string]any {
	return map[string]any{
		"id":          doc.ID,
		"projectId":   doc.ProjectID,
		"parentId":    doc.ParentID,
		"title":       doc.Title,
		"content":     doc.Content,
		"isFolder":    doc.IsFolder,
		"isPublished": doc.IsPublished,
		"sortOrder":   doc.SortOrder,
		"createdBy":   doc.CreatedBy,
		"createdAt":   doc.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func treePayload(nodes []tree.Node) []map[string]any {
	items := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		item := documentPayload(node.Document)
		delete(item, "content")
		item["depth"] = node.Depth
		item["children"] = treePayload(node.Children)
		items = append(items, item)
	}
	return items
}

func versionPayload(version store.DocumentVersion) map[string]any {
	return map[string]any{
		"id":            version.ID,
		"documentId":    version.DocumentID,
		"versionNumber": version.VersionNumber,
		"content":       version.Content,
		"createdBy":     version.CreatedBy,
		"createdAt":     version.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func publishPayload(item store.Publish) map[string]any {
	documents := item.Documents
	if documents == nil {
		documents = []store.PublishedDocument{}
	}
	return map[string]any{
		"id":            item.ID,
		"projectId":     item.ProjectID,
		"version":       item.Version,
		"storagePath":   item.StoragePath,
		"previewUrl":    item.PreviewURL,
		"publishedBy":   item.PublishedBy,
		"documentCount": item.DocumentCount,
		"documents":     documents,
		"createdAt":     item.CreatedAt.UTC().Format(time.RFC3339),
	}
}
