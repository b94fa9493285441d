// Package gcs stores model artifacts and training run logs in a Google Cloud
// Storage bucket. Objects are laid out as
//
//	<prefix>/users/<user>/models/<category>/<kind>.json
//	<prefix>/users/<user>/trained.json
//	<prefix>/users/<user>/runs/<started>-<run_id>.json
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"spendplan/internal/core"
	"spendplan/internal/models"
	"spendplan/internal/tsmodel"
)

var _ models.Store = (*Store)(nil)

type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a client using Application Default Credentials.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) userDir(userID string) string {
	return path.Join(s.prefix, "users", url.PathEscape(userID))
}

func (s *Store) artifactObject(userID, category, kind string) string {
	return path.Join(s.userDir(userID), "models", url.PathEscape(category), kind+".json")
}

func (s *Store) read(ctx context.Context, name string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, core.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) write(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", name, err)
	}
	return nil
}

func (s *Store) LoadSeasonal(ctx context.Context, userID, category string) (*tsmodel.SeasonalArtifact, error) {
	data, err := s.read(ctx, s.artifactObject(userID, category, models.KindSeasonal))
	if err != nil {
		return nil, err
	}
	return models.DecodeSeasonal(data)
}

func (s *Store) LoadSequence(ctx context.Context, userID, category string) (*tsmodel.SequenceArtifact, error) {
	data, err := s.read(ctx, s.artifactObject(userID, category, models.KindSequence))
	if err != nil {
		return nil, err
	}
	return models.DecodeSequence(data)
}

func (s *Store) SaveSeasonal(ctx context.Context, userID, category string, a *tsmodel.SeasonalArtifact) error {
	data, err := models.EncodeSeasonal(a)
	if err != nil {
		return err
	}
	return s.write(ctx, s.artifactObject(userID, category, models.KindSeasonal), data)
}

func (s *Store) SaveSequence(ctx context.Context, userID, category string, a *tsmodel.SequenceArtifact) error {
	data, err := models.EncodeSequence(a)
	if err != nil {
		return err
	}
	return s.write(ctx, s.artifactObject(userID, category, models.KindSequence), data)
}

type trainedMarker struct {
	UserID      string    `json:"user_id"`
	LastTrained time.Time `json:"last_trained"`
}

func (s *Store) MarkTrained(ctx context.Context, userID string, at time.Time) error {
	data, err := json.Marshal(trainedMarker{UserID: userID, LastTrained: at})
	if err != nil {
		return err
	}
	return s.write(ctx, path.Join(s.userDir(userID), "trained.json"), data)
}

func (s *Store) Status(ctx context.Context, userID string) (models.UserStatus, error) {
	st := models.UserStatus{UserID: userID}

	data, err := s.read(ctx, path.Join(s.userDir(userID), "trained.json"))
	switch {
	case err == nil:
		var m trainedMarker
		if err := json.Unmarshal(data, &m); err == nil {
			st.LastTrained = m.LastTrained
		}
	case !errors.Is(err, core.ErrModelNotFound):
		return st, err
	}

	dir := path.Join(s.userDir(userID), "models") + "/"
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: dir})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("list models for %s: %w", userID, err)
		}
		rest := strings.TrimPrefix(attrs.Name, dir)
		catEsc, file, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		category, err := url.PathUnescape(catEsc)
		if err != nil {
			continue
		}
		c := st.Category(category)
		switch strings.TrimSuffix(file, ".json") {
		case models.KindSeasonal:
			c.HasSeasonal = true
			c.SeasonalTrainedAt = attrs.Updated
		case models.KindSequence:
			c.HasSequence = true
			c.SequenceTrainedAt = attrs.Updated
		}
	}
	sort.Slice(st.Categories, func(i, j int) bool { return st.Categories[i].Category < st.Categories[j].Category })

	logs, err := s.ListRunLogs(ctx, userID, 5)
	if err != nil {
		return st, err
	}
	st.RecentLogs = logs
	return st, nil
}

func (s *Store) ListTrained(ctx context.Context) ([]core.User, error) {
	dir := path.Join(s.prefix, "users") + "/"
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: dir})
	var users []core.User
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if path.Base(attrs.Name) != "trained.json" {
			continue
		}
		data, err := s.read(ctx, attrs.Name)
		if err != nil {
			return nil, err
		}
		var m trainedMarker
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		users = append(users, core.User{ID: m.UserID, LastTrained: m.LastTrained})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) SaveRunLog(ctx context.Context, log models.RunLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}
	name := path.Join(s.userDir(log.UserID), "runs",
		log.StartedAt.UTC().Format("20060102T150405")+"-"+log.RunID+".json")
	return s.write(ctx, name, data)
}

// ListRunLogs relies on the timestamped object names sorting chronologically.
func (s *Store) ListRunLogs(ctx context.Context, userID string, limit int) ([]models.RunLog, error) {
	dir := path.Join(s.userDir(userID), "runs") + "/"
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: dir})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list run logs for %s: %w", userID, err)
		}
		names = append(names, attrs.Name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	logs := make([]models.RunLog, 0, len(names))
	for _, name := range names {
		data, err := s.read(ctx, name)
		if err != nil {
			return nil, err
		}
		var l models.RunLog
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("decode run log %s: %w", name, err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
