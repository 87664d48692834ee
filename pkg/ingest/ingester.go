package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/fedqa/pkg/databases"
	"github.com/kadirpekel/fedqa/pkg/embedders"
)

// DefaultBatchSize is how many chunks are embedded and upserted per
// round trip.
const DefaultBatchSize = 64

// Speech is one record in the speeches JSONL file.
type Speech struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PubDate     string `json:"pub_date"`
	Content     string `json:"content"`
}

// Stats summarizes one ingestion run.
type Stats struct {
	Speeches int
	Skipped  int
	Chunks   int
}

// Ingester loads speeches into the vector knowledge base.
type Ingester struct {
	store      databases.VectorStore
	embedder   embedders.Embedder
	collection string
	chunker    *Chunker
	batchSize  int
	logger     *slog.Logger
}

// NewIngester wires an ingester over the store and embedder.
func NewIngester(store databases.VectorStore, embedder embedders.Embedder, collection string, chunker *Chunker, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		store:      store,
		embedder:   embedder,
		collection: collection,
		chunker:    chunker,
		batchSize:  DefaultBatchSize,
		logger:     logger,
	}
}

// Run ingests the JSONL file at path: chunk every speech, embed the
// chunks in batches, and upsert them with their metadata payloads.
func (in *Ingester) Run(ctx context.Context, path string) (*Stats, error) {
	speeches, err := LoadSpeeches(path)
	if err != nil {
		return nil, err
	}

	if err := in.store.CreateCollection(ctx, in.collection, uint64(in.embedder.Dimensions())); err != nil {
		return nil, fmt.Errorf("failed to prepare collection %s: %w", in.collection, err)
	}

	stats := &Stats{}
	var batch []databases.Point
	var batchTexts []string

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vectors, err := in.embedder.Embed(ctx, batchTexts)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Vector = vectors[i]
		}
		if err := in.store.Upsert(ctx, in.collection, batch); err != nil {
			return fmt.Errorf("failed to upsert batch: %w", err)
		}
		stats.Chunks += len(batch)
		batch = batch[:0]
		batchTexts = batchTexts[:0]
		return nil
	}

	for speechIndex, speech := range speeches {
		if strings.TrimSpace(speech.Content) == "" {
			stats.Skipped++
			continue
		}

		chunks := in.chunker.Split(speech.Content)
		stats.Speeches++

		in.logger.Debug("Chunked speech",
			"title", speech.Title,
			"chunks", len(chunks))

		for chunkIndex, chunk := range chunks {
			batch = append(batch, databases.Point{
				ID: uuid.NewString(),
				Metadata: map[string]interface{}{
					"document":     chunk,
					"title":        speech.Title,
					"speaker":      speech.Author,
					"pub_date":     speech.PubDate,
					"category":     speech.Category,
					"url":          speech.URL,
					"description":  speech.Description,
					"chunk_index":  int64(chunkIndex),
					"total_chunks": int64(len(chunks)),
					"speech_id":    int64(speechIndex + 1),
				},
			})
			batchTexts = append(batchTexts, chunk)

			if len(batch) >= in.batchSize {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	in.logger.Info("Ingestion completed",
		"speeches", stats.Speeches,
		"skipped", stats.Skipped,
		"chunks", stats.Chunks,
		"collection", in.collection)

	return stats, nil
}

// LoadSpeeches reads one Speech per line from a JSONL file.
func LoadSpeeches(path string) ([]Speech, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open speeches file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Full speeches run far past the default line limit
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var speeches []Speech
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var speech Speech
		if err := json.Unmarshal([]byte(text), &speech); err != nil {
			return nil, fmt.Errorf("invalid speech record at line %d: %w", line, err)
		}
		speeches = append(speeches, speech)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read speeches file: %w", err)
	}

	return speeches, nil
}
