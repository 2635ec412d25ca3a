package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tognee/librephotos/internal/config"
	"github.com/tognee/librephotos/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, confidence, save_metadata_to_disk FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Confidence, &u.SaveMetadataToDisk)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// --- Assets ---

const assetColumns = `hash, owner_id, source_paths, thumbnail_big, square_thumbnail,
	square_thumbnail_small, aspect_ratio, added_on, timestamp, gps_lat, gps_lon,
	geolocation, captions, dominant_color, search_captions, search_location,
	rating, hidden, video, public, embedding, embedding_magnitude`

func (s *PostgresStore) GetAsset(ctx context.Context, hash string) (*models.Asset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE hash = $1`, hash)
	a, err := scanAsset(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// SaveAsset upserts the full asset row; the pipeline re-saves after each
// stage and the write must converge under retries.
func (s *PostgresStore) SaveAsset(ctx context.Context, a *models.Asset) error {
	paths, err := json.Marshal(a.SourcePaths)
	if err != nil {
		return fmt.Errorf("marshal source paths: %w", err)
	}
	var geo []byte
	if a.Geolocation != nil {
		if geo, err = json.Marshal(a.Geolocation); err != nil {
			return fmt.Errorf("marshal geolocation: %w", err)
		}
	}
	captions, err := json.Marshal(a.Captions)
	if err != nil {
		return fmt.Errorf("marshal captions: %w", err)
	}
	var color *string
	if a.DominantColor != nil {
		c := a.DominantColor.String()
		color = &c
	}
	var vec *pgvector.Vector
	if len(a.Embedding) > 0 {
		v := pgvector.NewVector(a.Embedding)
		vec = &v
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (hash) DO UPDATE SET
			source_paths = EXCLUDED.source_paths,
			thumbnail_big = EXCLUDED.thumbnail_big,
			square_thumbnail = EXCLUDED.square_thumbnail,
			square_thumbnail_small = EXCLUDED.square_thumbnail_small,
			aspect_ratio = EXCLUDED.aspect_ratio,
			timestamp = EXCLUDED.timestamp,
			gps_lat = EXCLUDED.gps_lat,
			gps_lon = EXCLUDED.gps_lon,
			geolocation = EXCLUDED.geolocation,
			captions = EXCLUDED.captions,
			dominant_color = EXCLUDED.dominant_color,
			search_captions = EXCLUDED.search_captions,
			search_location = EXCLUDED.search_location,
			rating = EXCLUDED.rating,
			hidden = EXCLUDED.hidden,
			video = EXCLUDED.video,
			public = EXCLUDED.public,
			embedding = EXCLUDED.embedding,
			embedding_magnitude = EXCLUDED.embedding_magnitude`,
		a.Hash, a.OwnerID, paths, a.ThumbnailBig, a.SquareThumbnail,
		a.SquareThumbnailSmall, a.AspectRatio, a.AddedOn, a.Timestamp, a.GPSLat, a.GPSLon,
		geo, captions, color, a.SearchCaptions, a.SearchLocation,
		a.Rating, a.Hidden, a.Video, a.Public, vec, a.EmbeddingMagnitude)
	if err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, hash string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset not found")
	}
	return nil
}

// VisibleAssets lists an owner's assets that are not hidden and have a
// computed aspect ratio (fully thumbnailed).
func (s *PostgresStore) VisibleAssets(ctx context.Context, ownerID int64, limit, offset int) ([]models.Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM assets
		 WHERE owner_id = $1 AND hidden = false AND aspect_ratio IS NOT NULL
		 ORDER BY timestamp DESC NULLS LAST LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list visible assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, nil
}

// --- Persons ---

func (s *PostgresStore) GetOrCreatePerson(ctx context.Context, ownerID int64, name string) (*models.Person, error) {
	p := &models.Person{ID: uuid.New(), OwnerID: ownerID, Name: name}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO persons (id, owner_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, created_at`,
		p.ID, p.OwnerID, p.Name,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create person: %w", err)
	}
	return p, nil
}

// --- Faces ---

func (s *PostgresStore) FacesForAsset(ctx context.Context, hash string) ([]models.Face, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_hash, person_id, location_top, location_right, location_bottom,
		        location_left, encoding, crop_key, created_at
		 FROM faces WHERE asset_hash = $1 ORDER BY created_at`, hash)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.ID, &f.AssetHash, &f.PersonID, &f.Top, &f.Right, &f.Bottom,
			&f.Left, &f.Encoding, &f.CropKey, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, nil
}

func (s *PostgresStore) CreateFace(ctx context.Context, f *models.Face, embedding []float32) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO faces (id, asset_hash, person_id, location_top, location_right,
		                   location_bottom, location_left, encoding, embedding, crop_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`,
		f.ID, f.AssetHash, f.PersonID, f.Top, f.Right, f.Bottom, f.Left,
		f.Encoding, vec, f.CropKey,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create face: %w", err)
	}
	return nil
}

type FaceMatch struct {
	FaceID   uuid.UUID `json:"face_id"`
	PersonID uuid.UUID `json:"person_id"`
	Name     string    `json:"name"`
	Score    float32   `json:"score"`
}

// SearchFaces finds the closest already-identified faces for an encoding,
// used to suggest identities for "unknown" faces.
func (s *PostgresStore) SearchFaces(ctx context.Context, embedding []float32, ownerID int64, threshold float64, limit int) ([]FaceMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.person_id, p.name, 1 - (f.embedding <=> $1) AS score
		FROM faces f
		JOIN persons p ON p.id = f.person_id
		WHERE p.owner_id = $2
		  AND p.name <> $3
		  AND 1 - (f.embedding <=> $1) >= $4
		ORDER BY f.embedding <=> $1
		LIMIT $5`,
		vec, ownerID, models.UnknownPersonName, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search faces: %w", err)
	}
	defer rows.Close()

	var matches []FaceMatch
	for rows.Next() {
		var m FaceMatch
		if err := rows.Scan(&m.FaceID, &m.PersonID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan face match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// --- Album by date ---

func (s *PostgresStore) GetAlbumDate(ctx context.Context, ownerID int64, date string) (*models.AlbumDate, error) {
	a := &models.AlbumDate{}
	var location []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, date, location FROM album_dates WHERE owner_id = $1 AND date = $2`,
		ownerID, date,
	).Scan(&a.ID, &a.OwnerID, &a.Date, &location)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get album date: %w", err)
	}
	if len(location) > 0 {
		if err := json.Unmarshal(location, &a.Location); err != nil {
			return nil, fmt.Errorf("unmarshal album date location: %w", err)
		}
	}
	return a, nil
}

func (s *PostgresStore) GetOrCreateAlbumDate(ctx context.Context, ownerID int64, date string) (*models.AlbumDate, error) {
	existing, err := s.GetAlbumDate(ctx, ownerID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	a := &models.AlbumDate{ID: uuid.New(), OwnerID: ownerID, Date: date}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO album_dates (id, owner_id, date) VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, date) DO NOTHING`,
		a.ID, a.OwnerID, a.Date)
	if err != nil {
		return nil, fmt.Errorf("create album date: %w", err)
	}
	// A concurrent worker may have won the insert; read back the row.
	return s.GetAlbumDate(ctx, ownerID, date)
}

func (s *PostgresStore) SaveAlbumDate(ctx context.Context, a *models.AlbumDate) error {
	var location []byte
	if a.Location != nil {
		var err error
		if location, err = json.Marshal(a.Location); err != nil {
			return fmt.Errorf("marshal album date location: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE album_dates SET location = $1 WHERE id = $2`, location, a.ID)
	if err != nil {
		return fmt.Errorf("save album date: %w", err)
	}
	return nil
}

func (s *PostgresStore) AlbumDateContains(ctx context.Context, albumID uuid.UUID, hash string) (bool, error) {
	return s.membershipExists(ctx, "album_date_assets", "album_date_id", albumID, hash)
}

func (s *PostgresStore) AddToAlbumDate(ctx context.Context, albumID uuid.UUID, hash string) error {
	return s.addMembership(ctx, "album_date_assets", "album_date_id", albumID, hash)
}

func (s *PostgresStore) RemoveFromAlbumDate(ctx context.Context, albumID uuid.UUID, hash string) error {
	return s.removeMembership(ctx, "album_date_assets", "album_date_id", albumID, hash)
}

// --- Album by place ---

func (s *PostgresStore) AlbumPlacesForAsset(ctx context.Context, ownerID int64, hash string) ([]models.AlbumPlace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ap.id, ap.owner_id, ap.title, ap.geolocation_level
		FROM album_places ap
		JOIN album_place_assets apa ON apa.album_place_id = ap.id
		WHERE ap.owner_id = $1 AND apa.asset_hash = $2`,
		ownerID, hash)
	if err != nil {
		return nil, fmt.Errorf("list album places: %w", err)
	}
	defer rows.Close()

	var albums []models.AlbumPlace
	for rows.Next() {
		var a models.AlbumPlace
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Title, &a.GeolocationLevel); err != nil {
			return nil, fmt.Errorf("scan album place: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, nil
}

func (s *PostgresStore) GetOrCreateAlbumPlace(ctx context.Context, ownerID int64, title string) (*models.AlbumPlace, error) {
	a := &models.AlbumPlace{ID: uuid.New(), OwnerID: ownerID, Title: title}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO album_places (id, owner_id, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, title) DO UPDATE SET title = EXCLUDED.title
		RETURNING id, geolocation_level`,
		a.ID, a.OwnerID, a.Title,
	).Scan(&a.ID, &a.GeolocationLevel)
	if err != nil {
		return nil, fmt.Errorf("get or create album place: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SaveAlbumPlace(ctx context.Context, a *models.AlbumPlace) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE album_places SET geolocation_level = $1 WHERE id = $2`,
		a.GeolocationLevel, a.ID)
	if err != nil {
		return fmt.Errorf("save album place: %w", err)
	}
	return nil
}

func (s *PostgresStore) AlbumPlaceContains(ctx context.Context, albumID uuid.UUID, hash string) (bool, error) {
	return s.membershipExists(ctx, "album_place_assets", "album_place_id", albumID, hash)
}

func (s *PostgresStore) AddToAlbumPlace(ctx context.Context, albumID uuid.UUID, hash string) error {
	return s.addMembership(ctx, "album_place_assets", "album_place_id", albumID, hash)
}

func (s *PostgresStore) RemoveFromAlbumPlace(ctx context.Context, albumID uuid.UUID, hash string) error {
	return s.removeMembership(ctx, "album_place_assets", "album_place_id", albumID, hash)
}

// --- Album by thing ---

func (s *PostgresStore) GetOrCreateAlbumThing(ctx context.Context, ownerID int64, title string) (*models.AlbumThing, error) {
	a := &models.AlbumThing{ID: uuid.New(), OwnerID: ownerID, Title: title}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO album_things (id, owner_id, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, title) DO UPDATE SET title = EXCLUDED.title
		RETURNING id, thing_type`,
		a.ID, a.OwnerID, a.Title,
	).Scan(&a.ID, &a.ThingType)
	if err != nil {
		return nil, fmt.Errorf("get or create album thing: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SaveAlbumThing(ctx context.Context, a *models.AlbumThing) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE album_things SET thing_type = $1 WHERE id = $2`, a.ThingType, a.ID)
	if err != nil {
		return fmt.Errorf("save album thing: %w", err)
	}
	return nil
}

func (s *PostgresStore) AlbumThingContains(ctx context.Context, albumID uuid.UUID, hash string) (bool, error) {
	return s.membershipExists(ctx, "album_thing_assets", "album_thing_id", albumID, hash)
}

func (s *PostgresStore) AddToAlbumThing(ctx context.Context, albumID uuid.UUID, hash string) error {
	return s.addMembership(ctx, "album_thing_assets", "album_thing_id", albumID, hash)
}

// --- Membership helpers ---

func (s *PostgresStore) membershipExists(ctx context.Context, table, column string, albumID uuid.UUID, hash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1 AND asset_hash = $2)`, table, column),
		albumID, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership %s: %w", table, err)
	}
	return exists, nil
}

func (s *PostgresStore) addMembership(ctx context.Context, table, column string, albumID uuid.UUID, hash string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, asset_hash) VALUES ($1, $2) ON CONFLICT DO NOTHING`, table, column),
		albumID, hash)
	if err != nil {
		return fmt.Errorf("add membership %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) removeMembership(ctx context.Context, table, column string, albumID uuid.UUID, hash string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND asset_hash = $2`, table, column),
		albumID, hash)
	if err != nil {
		return fmt.Errorf("remove membership %s: %w", table, err)
	}
	return nil
}

// --- Row scanning ---

func scanAsset(row pgx.Row) (*models.Asset, error) {
	a := &models.Asset{}
	var (
		paths    []byte
		geo      []byte
		captions []byte
		color    *string
		vec      *pgvector.Vector
	)
	err := row.Scan(&a.Hash, &a.OwnerID, &paths, &a.ThumbnailBig, &a.SquareThumbnail,
		&a.SquareThumbnailSmall, &a.AspectRatio, &a.AddedOn, &a.Timestamp, &a.GPSLat, &a.GPSLon,
		&geo, &captions, &color, &a.SearchCaptions, &a.SearchLocation,
		&a.Rating, &a.Hidden, &a.Video, &a.Public, &vec, &a.EmbeddingMagnitude)
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		if err := json.Unmarshal(paths, &a.SourcePaths); err != nil {
			return nil, fmt.Errorf("unmarshal source paths: %w", err)
		}
	}
	if len(geo) > 0 {
		if err := json.Unmarshal(geo, &a.Geolocation); err != nil {
			return nil, fmt.Errorf("unmarshal geolocation: %w", err)
		}
	}
	if len(captions) > 0 {
		if err := json.Unmarshal(captions, &a.Captions); err != nil {
			return nil, fmt.Errorf("unmarshal captions: %w", err)
		}
	}
	if color != nil {
		rgb, err := parseRGB(*color)
		if err != nil {
			return nil, err
		}
		a.DominantColor = rgb
	}
	if vec != nil {
		a.Embedding = vec.Slice()
	}
	return a, nil
}

func parseRGB(s string) (*models.RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed dominant color %q", s)
	}
	var vals [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("malformed dominant color %q", s)
		}
		vals[i] = uint8(n)
	}
	return &models.RGB{R: vals[0], G: vals[1], B: vals[2]}, nil
}
