package projectfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/idgen"
	"github.com/cathedral/cathedral/internal/kv"
)

// Upload is the raw input for Add.
type Upload struct {
	Name        string
	ContentType string
	// Type overrides detection when set to TypeText or TypePDF.
	Type string
	Data []byte
}

// Store is the project-file list of one persona, oldest first.
type Store struct {
	store     kv.Store
	namespace string
	maxChars  int
	logger    zerolog.Logger
	now       func() time.Time
}

func NewStore(store kv.Store, namespace string, maxChars int, logger zerolog.Logger) *Store {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Store{
		store:     store,
		namespace: namespace,
		maxChars:  maxChars,
		logger:    logger.With().Str("component", "project_files").Str("persona", namespace).Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every file with content. Store failures degrade to empty.
func (s *Store) List(ctx context.Context) []File {
	files, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list project files failed")
		return []File{}
	}
	return files
}

func (s *Store) Get(ctx context.Context, id string) (File, error) {
	files, err := s.load(ctx)
	if err != nil {
		return File{}, err
	}
	for _, f := range files {
		if f.ID == id {
			return f, nil
		}
	}
	return File{}, ErrNotFound
}

// Add extracts, truncates and appends an upload.
func (s *Store) Add(ctx context.Context, up Upload) (File, error) {
	name := strings.TrimSpace(up.Name)
	if name == "" {
		return File{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(up.Data) == 0 {
		return File{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	fileType := up.Type
	if fileType != TypeText && fileType != TypePDF {
		fileType = DetectType(name, up.ContentType)
	}
	text, err := ExtractText(fileType, up.Data)
	if err != nil {
		return File{}, err
	}

	files, err := s.load(ctx)
	if err != nil {
		return File{}, err
	}
	f := File{
		ID:         idgen.Short(),
		Name:       name,
		Content:    Truncate(text, s.maxChars),
		Type:       fileType,
		Size:       len(up.Data),
		UploadedAt: s.now(),
	}
	files = append(files, f)
	if err := s.save(ctx, files); err != nil {
		return File{}, err
	}
	s.logger.Info().Str("file_id", f.ID).Str("type", f.Type).Int("size", f.Size).Msg("project file added")
	return f, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	files, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for i, f := range files {
		if f.ID != id {
			continue
		}
		next := append(files[:i:i], files[i+1:]...)
		if err := s.save(ctx, next); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) load(ctx context.Context) ([]File, error) {
	var files []File
	if _, err := kv.GetJSON(ctx, s.store, kv.ProjectFilesKey(s.namespace), &files); err != nil {
		return nil, fmt.Errorf("load project files: %w", err)
	}
	if files == nil {
		files = []File{}
	}
	return files, nil
}

func (s *Store) save(ctx context.Context, files []File) error {
	if err := kv.SetJSON(ctx, s.store, kv.ProjectFilesKey(s.namespace), files); err != nil {
		return fmt.Errorf("save project files: %w", err)
	}
	return nil
}
