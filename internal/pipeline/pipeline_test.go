package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/vision"
)

// In-memory fakes for the pipeline's collaborators.

type memStore struct {
	mu sync.Mutex

	users   map[int64]*models.User
	assets  map[string]*models.Asset
	persons map[string]*models.Person

	faces map[string][]models.Face

	albumDates  map[string]*models.AlbumDate
	albumPlaces map[string]*models.AlbumPlace
	albumThings map[string]*models.AlbumThing

	memberships map[uuid.UUID]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[int64]*models.User),
		assets:      make(map[string]*models.Asset),
		persons:     make(map[string]*models.Person),
		faces:       make(map[string][]models.Face),
		albumDates:  make(map[string]*models.AlbumDate),
		albumPlaces: make(map[string]*models.AlbumPlace),
		albumThings: make(map[string]*models.AlbumThing),
		memberships: make(map[uuid.UUID]map[string]bool),
	}
}

func ownerKey(ownerID int64, name string) string {
	return fmt.Sprintf("%d|%s", ownerID, name)
}

func cloneAsset(a *models.Asset) *models.Asset {
	if a == nil {
		return nil
	}
	c := *a
	c.SourcePaths = append([]string(nil), a.SourcePaths...)
	c.Embedding = append([]float32(nil), a.Embedding...)
	return &c
}

func (s *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *memStore) GetAsset(_ context.Context, hash string) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAsset(s.assets[hash]), nil
}

func (s *memStore) SaveAsset(_ context.Context, a *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.Hash] = cloneAsset(a)
	return nil
}

func (s *memStore) DeleteAsset(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, hash)
	delete(s.faces, hash)
	for _, members := range s.memberships {
		delete(members, hash)
	}
	return nil
}

func (s *memStore) GetOrCreatePerson(_ context.Context, ownerID int64, name string) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey(ownerID, name)
	if p, ok := s.persons[key]; ok {
		return p, nil
	}
	p := &models.Person{ID: uuid.New(), OwnerID: ownerID, Name: name, CreatedAt: time.Now()}
	s.persons[key] = p
	return p, nil
}

func (s *memStore) FacesForAsset(_ context.Context, hash string) ([]models.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Face(nil), s.faces[hash]...), nil
}

func (s *memStore) CreateFace(_ context.Context, f *models.Face, _ []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	s.faces[f.AssetHash] = append(s.faces[f.AssetHash], *f)
	return nil
}

func (s *memStore) GetAlbumDate(_ context.Context, ownerID int64, date string) (*models.AlbumDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.albumDates[ownerKey(ownerID, date)], nil
}

func (s *memStore) GetOrCreateAlbumDate(_ context.Context, ownerID int64, date string) (*models.AlbumDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey(ownerID, date)
	if a, ok := s.albumDates[key]; ok {
		return a, nil
	}
	a := &models.AlbumDate{ID: uuid.New(), OwnerID: ownerID, Date: date}
	s.albumDates[key] = a
	return a, nil
}

func (s *memStore) SaveAlbumDate(_ context.Context, a *models.AlbumDate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albumDates[ownerKey(a.OwnerID, a.Date)] = a
	return nil
}

func (s *memStore) AlbumPlacesForAsset(_ context.Context, ownerID int64, hash string) ([]models.AlbumPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AlbumPlace
	for _, a := range s.albumPlaces {
		if a.OwnerID == ownerID && s.memberships[a.ID][hash] {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) GetOrCreateAlbumPlace(_ context.Context, ownerID int64, title string) (*models.AlbumPlace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey(ownerID, title)
	if a, ok := s.albumPlaces[key]; ok {
		return a, nil
	}
	a := &models.AlbumPlace{ID: uuid.New(), OwnerID: ownerID, Title: title}
	s.albumPlaces[key] = a
	return a, nil
}

func (s *memStore) SaveAlbumPlace(_ context.Context, a *models.AlbumPlace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albumPlaces[ownerKey(a.OwnerID, a.Title)] = a
	return nil
}

func (s *memStore) GetOrCreateAlbumThing(_ context.Context, ownerID int64, title string) (*models.AlbumThing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerKey(ownerID, title)
	if a, ok := s.albumThings[key]; ok {
		return a, nil
	}
	a := &models.AlbumThing{ID: uuid.New(), OwnerID: ownerID, Title: title}
	s.albumThings[key] = a
	return a, nil
}

func (s *memStore) SaveAlbumThing(_ context.Context, a *models.AlbumThing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albumThings[ownerKey(a.OwnerID, a.Title)] = a
	return nil
}

func (s *memStore) contains(albumID uuid.UUID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberships[albumID][hash], nil
}

func (s *memStore) add(albumID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberships[albumID] == nil {
		s.memberships[albumID] = make(map[string]bool)
	}
	s.memberships[albumID][hash] = true
	return nil
}

func (s *memStore) remove(albumID uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships[albumID], hash)
	return nil
}

func (s *memStore) AlbumDateContains(_ context.Context, id uuid.UUID, hash string) (bool, error) {
	return s.contains(id, hash)
}
func (s *memStore) AddToAlbumDate(_ context.Context, id uuid.UUID, hash string) error {
	return s.add(id, hash)
}
func (s *memStore) RemoveFromAlbumDate(_ context.Context, id uuid.UUID, hash string) error {
	return s.remove(id, hash)
}
func (s *memStore) AlbumPlaceContains(_ context.Context, id uuid.UUID, hash string) (bool, error) {
	return s.contains(id, hash)
}
func (s *memStore) AddToAlbumPlace(_ context.Context, id uuid.UUID, hash string) error {
	return s.add(id, hash)
}
func (s *memStore) RemoveFromAlbumPlace(_ context.Context, id uuid.UUID, hash string) error {
	return s.remove(id, hash)
}
func (s *memStore) AlbumThingContains(_ context.Context, id uuid.UUID, hash string) (bool, error) {
	return s.contains(id, hash)
}
func (s *memStore) AddToAlbumThing(_ context.Context, id uuid.UUID, hash string) error {
	return s.add(id, hash)
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  int
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: make(map[string][]byte)}
}

func (m *memArtifacts) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memArtifacts) Write(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.writes++
	return nil
}

func (m *memArtifacts) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memArtifacts) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type fakeMetadata struct {
	tags   map[string]map[string]string
	errs   map[string]error
	writes []map[string]string
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{tags: make(map[string]map[string]string), errs: make(map[string]error)}
}

func (f *fakeMetadata) setTag(path, tag, value string) {
	if f.tags[path] == nil {
		f.tags[path] = make(map[string]string)
	}
	f.tags[path][tag] = value
}

func (f *fakeMetadata) ReadTags(_ context.Context, path string, tags []string, _ bool) ([]*string, error) {
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	out := make([]*string, len(tags))
	for i, tag := range tags {
		if v, ok := f.tags[path][tag]; ok {
			v := v
			out[i] = &v
		}
	}
	return out, nil
}

func (f *fakeMetadata) WriteTags(_ context.Context, _ string, tags map[string]string, _ bool) error {
	f.writes = append(f.writes, tags)
	return nil
}

type fakeGeocoder struct {
	result *models.Geolocation
	err    error
	calls  int
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (*models.Geolocation, error) {
	f.calls++
	return f.result, f.err
}

type fakeTimezone struct{ zone string }

func (f *fakeTimezone) TimezoneAt(_, _ float64) string { return f.zone }

type fakeDetector struct {
	boxes []vision.Box
	err   error
}

func (f *fakeDetector) DetectFaces(image.Image) ([]vision.Box, error) { return f.boxes, f.err }

type fakeEncoder struct {
	embeddings [][]float32
	err        error
}

func (f *fakeEncoder) EncodeFaces(_ image.Image, boxes []vision.Box) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(boxes))
	copy(out, f.embeddings)
	return out, nil
}

type fakeClassifier struct {
	scene *models.SceneCaption
	err   error
}

func (f *fakeClassifier) ClassifyScene(image.Image, float64) (*models.SceneCaption, error) {
	return f.scene, f.err
}

type fakeCaptioner struct {
	caption string
	err     error
}

func (f *fakeCaptioner) GenerateCaption(context.Context, []byte) (string, error) {
	return f.caption, f.err
}

type fakeEmbedder struct {
	vector    []float32
	magnitude float32
	err       error
	calls     int
}

func (f *fakeEmbedder) EmbedImage(image.Image) ([]float32, float32, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.vector, f.magnitude, nil
}

type fakeEvents struct {
	events []*models.EnrichmentEvent
}

func (f *fakeEvents) PublishEvent(_ context.Context, _ int64, data interface{}) error {
	if e, ok := data.(*models.EnrichmentEvent); ok {
		f.events = append(f.events, e)
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func timeMustParse(t *testing.T, date string) time.Time {
	t.Helper()
	ts, err := time.Parse(models.DateLayout, date)
	if err != nil {
		t.Fatalf("parse %q: %v", date, err)
	}
	return ts
}
