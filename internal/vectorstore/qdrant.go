package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragchat-go/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant-backed collection.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements rag.VectorStore backed by a Qdrant instance.
// Record order stability is provided by a monotonically increasing "seq"
// payload field assigned at insert time; GetAll and Query tie-breaking sort
// on it. An upserted record keeps its original seq, matching the SQLite
// backend's ON CONFLICT behavior, so re-ingesting a document does not move
// its pages in iteration order. UpdateMetadata verifies every id before
// writing any payload, so a missing id is detected before the first
// mutation; unlike the SQLite backend the per-point writes themselves are
// not transactional.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// mu guards the seq high-water mark under the single-writer model.
	mu sync.Mutex

	// seq is the highest insertion sequence number in the collection,
	// loaded lazily on the first insert of this process.
	seq int64

	// seqLoaded records whether seq has been recovered from the collection.
	seqLoaded bool
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use store.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID derives a deterministic Qdrant UUID from a record id. Qdrant point
// ids must be UUIDs; the original record id is kept in the payload.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String())
}

// Insert upserts a batch of records. Dimensionality is enforced against the
// collection's configured vector size before any point is written.
func (s *QdrantStore) Insert(ctx context.Context, records []rag.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("qdrant: insert: %w", rag.ErrEmptyBatch)
	}

	for _, rec := range records {
		if uint64(len(rec.Embedding)) != s.cfg.VectorSize {
			return fmt.Errorf("qdrant: insert %q: got %d dimensions, collection has %d: %w",
				rec.ID, len(rec.Embedding), s.cfg.VectorSize, rag.ErrDimensionMismatch)
		}
	}

	existing, err := s.existingSeqs(ctx, records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seqLoaded {
		hw, err := s.maxSeq(ctx)
		if err != nil {
			return err
		}
		s.seq = hw
		s.seqLoaded = true
	}
	seqs, next := assignSeqs(records, existing, s.seq)
	s.seq = next

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"record_id":  rec.ID,
				"seq":        seqs[i],
				"text":       rec.Text,
				"source":     rec.Metadata.Source,
				"page":       rec.Metadata.Page,
				"cluster_id": rec.Metadata.ClusterID,
			}),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// assignSeqs pairs each record with its insertion sequence number. A record
// already in the collection keeps its original seq so an upsert does not
// move it in iteration order; new records get values above the high-water
// mark. It returns the per-record seqs and the new high-water mark.
func assignSeqs(records []rag.Record, existing map[string]int64, highWater int64) ([]int64, int64) {
	seqs := make([]int64, len(records))
	next := highWater
	for i, rec := range records {
		if sq, ok := existing[rec.ID]; ok {
			seqs[i] = sq
			continue
		}
		next++
		seqs[i] = next
		// A repeated id within one batch reuses the seq it was just given,
		// same as the SQLite backend's per-row ON CONFLICT.
		existing[rec.ID] = next
	}
	return seqs, next
}

// existingSeqs fetches the batch's already-stored points and returns their
// record id -> seq mapping.
func (s *QdrantStore) existingSeqs(ctx context.Context, records []rag.Record) (map[string]int64, error) {
	ids := make([]*qdrant.PointId, 0, len(records))
	for _, rec := range records {
		ids = append(ids, pointID(rec.ID))
	}
	found, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: get existing points: %w", err)
	}

	out := make(map[string]int64, len(found))
	for _, p := range found {
		id, ok := p.Payload["record_id"]
		if !ok {
			continue
		}
		if sq, ok := p.Payload["seq"]; ok {
			out[id.GetStringValue()] = sq.GetIntegerValue()
		}
	}
	return out, nil
}

// maxSeq scrolls the collection once to recover the seq high-water mark.
// Qdrant has no autoincrement; after this one scan the mark is maintained
// in memory under the single-writer model this tool assumes.
func (s *QdrantStore) maxSeq(ctx context.Context) (int64, error) {
	var hw int64
	var offset *qdrant.PointId

	for {
		limit := uint32(256)
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return 0, fmt.Errorf("qdrant: scroll for seq: %w", err)
		}
		if len(points) == 0 {
			break
		}
		for _, p := range points {
			if v, ok := p.Payload["seq"]; ok && v.GetIntegerValue() > hw {
				hw = v.GetIntegerValue()
			}
		}
		if len(points) < int(limit) {
			break
		}
		offset = points[len(points)-1].Id
	}
	return hw, nil
}

// GetAll scrolls every point and returns records sorted by insertion seq.
func (s *QdrantStore) GetAll(ctx context.Context) ([]rag.Record, error) {
	type seqRecord struct {
		rec rag.Record
		seq int64
	}
	var out []seqRecord
	var offset *qdrant.PointId

	for {
		limit := uint32(256)
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
		}
		if len(points) == 0 {
			break
		}
		for _, p := range points {
			rec, seq := recordFromPayload(p.Payload, p.Vectors.GetVector().GetData())
			out = append(out, seqRecord{rec: rec, seq: seq})
		}
		if len(points) < int(limit) {
			break
		}
		offset = points[len(points)-1].Id
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })

	recs := make([]rag.Record, len(out))
	for i, sr := range out {
		recs[i] = sr.rec
	}
	return recs, nil
}

// recordFromPayload converts a Qdrant payload + vector into a rag.Record and
// its insertion seq.
func recordFromPayload(payload map[string]*qdrant.Value, vector []float32) (rag.Record, int64) {
	rec := rag.Record{
		Embedding: vector,
		Metadata:  rag.Metadata{ClusterID: rag.ClusterUnassigned},
	}
	if v, ok := payload["record_id"]; ok {
		rec.ID = v.GetStringValue()
	}
	if v, ok := payload["text"]; ok {
		rec.Text = v.GetStringValue()
	}
	if v, ok := payload["source"]; ok {
		rec.Metadata.Source = v.GetStringValue()
	}
	if v, ok := payload["page"]; ok {
		rec.Metadata.Page = int(v.GetIntegerValue())
	}
	if v, ok := payload["cluster_id"]; ok {
		rec.Metadata.ClusterID = int(v.GetIntegerValue())
	}
	var seq int64
	if v, ok := payload["seq"]; ok {
		seq = v.GetIntegerValue()
	}
	return rec, seq
}

// Query performs a cosine similarity search and returns up to topN hits by
// ascending distance. Qdrant reports cosine similarity; distance is 1-score
// so the pipeline's relevance convention (relevance = 1-distance) recovers
// the similarity.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, topN int) ([]rag.ScoredRecord, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.cfg.Collection})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count failed: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("qdrant: query: %w", rag.ErrEmptyCollection)
	}

	limit := uint64(topN) //nolint:gosec // topN validated at startup
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]rag.ScoredRecord, 0, len(results))
	for _, r := range results {
		rec, _ := recordFromPayload(r.Payload, r.Vectors.GetVector().GetData())
		hits = append(hits, rag.ScoredRecord{
			Record:    rec,
			Distance:  1 - r.Score,
			Relevance: r.Score,
		})
	}
	return hits, nil
}

// UpdateMetadata verifies every id exists, then writes each record's payload
// fields. Verification happens before the first write so an unknown id fails
// the whole operation without mutating anything.
func (s *QdrantStore) UpdateMetadata(ctx context.Context, updates map[string]rag.Metadata) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(updates))
	for id := range updates {
		ids = append(ids, pointID(id))
	}
	found, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            ids,
	})
	if err != nil {
		return fmt.Errorf("qdrant: verify ids: %w", err)
	}
	if len(found) != len(updates) {
		return fmt.Errorf("qdrant: update metadata: %d of %d ids present: %w",
			len(found), len(updates), rag.ErrIDNotFound)
	}

	for id, md := range updates {
		_, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: s.cfg.Collection,
			Payload: qdrant.NewValueMap(map[string]any{
				"source":     md.Source,
				"page":       md.Page,
				"cluster_id": md.ClusterID,
			}),
			PointsSelector: qdrant.NewPointsSelector(pointID(id)),
		})
		if err != nil {
			return fmt.Errorf("qdrant: set payload for %q: %w", id, err)
		}
	}

	return nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.cfg.Collection})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil //nolint:gosec // point counts are far below int range
}

// Client exposes the underlying Qdrant gRPC client for health probing.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
