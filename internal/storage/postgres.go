package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/w-garcia/nextvlad-go/internal/models"
)

// PostgresStore writes frame features to Postgres with pgvector, keyed by
// video and frame number, and answers nearest-frame queries.
type PostgresStore struct {
	pool      *pgxpool.Pool
	videoID   int
	videoName string
	dim       int
}

// NewPostgresStore connects to connString. dim is the stored feature
// dimensionality. Writes require BindVideo first; searches do not.
func NewPostgresStore(ctx context.Context, connString string, dim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, dim: dim}, nil
}

// BindVideo targets subsequent writes at videoName, creating its row if
// needed.
func (s *PostgresStore) BindVideo(ctx context.Context, videoName string) error {
	videoID, err := s.getOrCreateVideo(ctx, videoName)
	if err != nil {
		return err
	}
	s.videoID = videoID
	s.videoName = videoName
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// getOrCreateVideo gets an existing video entry or creates a new one.
func (s *PostgresStore) getOrCreateVideo(ctx context.Context, videoName string) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM videos WHERE name = $1",
		videoName).Scan(&id)

	if err == nil {
		return id, nil
	} else if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("error checking for existing video: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"INSERT INTO videos (name, created_at) VALUES ($1, $2) RETURNING id",
		videoName, time.Now()).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to create video entry: %w", err)
	}

	return id, nil
}

// AddFrameFeature stores one frame and its feature vector.
func (s *PostgresStore) AddFrameFeature(ctx context.Context, f models.FrameFeature) error {
	if s.videoID == 0 {
		return fmt.Errorf("storage: no video bound, call BindVideo first")
	}
	if len(f.Embedding) != s.dim {
		return fmt.Errorf("storage: frame %s has dim %d, store expects %d", f.Frame, len(f.Embedding), s.dim)
	}

	var frameID int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO frames
        (video_id, frame_number, frame_path, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id`,
		s.videoID, f.FrameNum, f.Frame, time.Now()).Scan(&frameID)

	if err != nil {
		return fmt.Errorf("failed to store frame information: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO frame_features
        (frame_id, embedding, created_at)
        VALUES ($1, $2, $3)`,
		frameID, pgvector.NewVector(f.Embedding), time.Now())

	if err != nil {
		return fmt.Errorf("failed to store frame feature: %w", err)
	}

	return nil
}

// Flush implements Store; Postgres writes go through immediately.
func (s *PostgresStore) Flush() error {
	return nil
}

// SearchSimilarFrames finds stored frames nearest to the query vector by
// cosine distance, across all videos.
func (s *PostgresStore) SearchSimilarFrames(ctx context.Context, query []float32, limit int) ([]models.FrameSearchResult, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("storage: query has dim %d, store expects %d", len(query), s.dim)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT v.name, f.frame_number, f.frame_path,
        1 - (ff.embedding <=> $1) AS similarity
        FROM frame_features ff
        JOIN frames f ON ff.frame_id = f.id
        JOIN videos v ON f.video_id = v.id
        ORDER BY ff.embedding <=> $1
        LIMIT $2`,
		pgvector.NewVector(query), limit)

	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []models.FrameSearchResult
	for rows.Next() {
		var result models.FrameSearchResult
		if err := rows.Scan(&result.VideoName, &result.FrameNumber,
			&result.FramePath, &result.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// InitSchema creates the feature-store schema and the pgvector extension
// if they don't exist. dim fixes the stored vector dimensionality.
func InitSchema(ctx context.Context, connString string, dim int) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for vector extension: %w", err)
	}
	if !exists {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS videos (
            id SERIAL PRIMARY KEY,
            name TEXT UNIQUE NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS frames (
            id SERIAL PRIMARY KEY,
            video_id INTEGER NOT NULL REFERENCES videos(id),
            frame_number INTEGER NOT NULL,
            frame_path TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS frame_features (
            id SERIAL PRIMARY KEY,
            frame_id INTEGER NOT NULL REFERENCES frames(id),
            embedding vector(%d),
            created_at TIMESTAMPTZ NOT NULL
        )`, dim),
	}
	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}
