package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rapidrecall/dashboard/internal/core/domain"
	"github.com/rapidrecall/dashboard/internal/core/ports"
)

const collectionUploads = "recall_uploads"

type uploadDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	UID        string             `bson:"uid"`
	FileName   string             `bson:"file_name"`
	MimeType   string             `bson:"mime_type"`
	Size       int64              `bson:"size"`
	OK         bool               `bson:"ok"`
	Error      string             `bson:"error,omitempty"`
	Extraction bson.M             `bson:"extraction,omitempty"`
	UploadedAt time.Time          `bson:"uploaded_at"`
}

type UploadRepository struct {
	col *mongo.Collection
}

var _ ports.UploadHistory = (*UploadRepository)(nil)

func NewUploadRepository(db *mongo.Database) *UploadRepository {
	return &UploadRepository{col: db.Collection(collectionUploads)}
}

// Record inserts rec and sets its ID.
func (r *UploadRepository) Record(ctx context.Context, rec *domain.UploadRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toUploadDocument(rec)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

// ListByUID returns the latest uploads of uid, newest first.
func (r *UploadRepository) ListByUID(ctx context.Context, uid string, limit int) ([]*domain.UploadRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, bson.M{"uid": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("find uploads: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []uploadDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode uploads: %w", err)
	}
	out := make([]*domain.UploadRecord, 0, len(docs))
	for i := range docs {
		out = append(out, fromUploadDocument(&docs[i]))
	}
	return out, nil
}

// EnsureIndexes creates the index backing ListByUID.
func (r *UploadRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "uid", Value: 1}, {Key: "uploaded_at", Value: -1}},
	})
	return err
}

func toUploadDocument(rec *domain.UploadRecord) uploadDocument {
	doc := uploadDocument{
		UID:        rec.UID,
		FileName:   rec.FileName,
		MimeType:   rec.MimeType,
		Size:       rec.Size,
		OK:         rec.OK,
		Error:      rec.Error,
		UploadedAt: rec.UploadedAt,
	}
	if len(rec.Extraction) > 0 {
		doc.Extraction = bson.M(rec.Extraction)
	}
	if oid, err := primitive.ObjectIDFromHex(rec.ID); err == nil {
		doc.ID = oid
	}
	return doc
}

func fromUploadDocument(doc *uploadDocument) *domain.UploadRecord {
	rec := &domain.UploadRecord{
		ID:         doc.ID.Hex(),
		UID:        doc.UID,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		Size:       doc.Size,
		OK:         doc.OK,
		Error:      doc.Error,
		UploadedAt: doc.UploadedAt,
	}
	if len(doc.Extraction) > 0 {
		rec.Extraction = map[string]any(doc.Extraction)
	}
	return rec
}
