package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/imagegate/internal/domain"
	"alcyxob/imagegate/internal/repository"
)

const uploadCollectionName = "uploads"

// ErrInvalidUpload is returned by Create when required metadata is missing.
var ErrInvalidUpload = errors.New("upload requires fileName and publicPath")

// mongoUploadRepository implements repository.UploadRepository
type mongoUploadRepository struct {
	collection *mongo.Collection
}

// NewMongoUploadRepository creates a new Upload repository backed by MongoDB.
func NewMongoUploadRepository(db *mongo.Database) repository.UploadRepository {
	return &mongoUploadRepository{
		collection: db.Collection(uploadCollectionName),
	}
}

// Create inserts new upload metadata into the database.
func (r *mongoUploadRepository) Create(ctx context.Context, upload *domain.Upload) (primitive.ObjectID, error) {
	if upload.FileName == "" || upload.PublicPath == "" {
		return primitive.NilObjectID, ErrInvalidUpload
	}

	upload.ID = primitive.NewObjectID()
	if upload.UploadedAt.IsZero() {
		upload.UploadedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, upload)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("%w: %s", repository.ErrDuplicate, upload.FileName)
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves upload metadata by its ID.
func (r *mongoUploadRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Upload, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByFileName retrieves upload metadata by the generated file name.
func (r *mongoUploadRepository) GetByFileName(ctx context.Context, fileName string) (*domain.Upload, error) {
	return r.findOne(ctx, bson.M{"fileName": fileName})
}

func (r *mongoUploadRepository) findOne(ctx context.Context, filter bson.M) (*domain.Upload, error) {
	var upload domain.Upload
	err := r.collection.FindOne(ctx, filter).Decode(&upload)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &upload, nil
}

// EnsureUploadIndexes creates necessary indexes for the uploads collection.
func EnsureUploadIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			// Generated names are unique on disk, so they are unique here too
			Keys:    bson.D{{Key: "fileName", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "uploadedBy", Value: 1}, {Key: "uploadedAt", Value: -1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := db.Collection(uploadCollectionName).Indexes().CreateMany(ctx, indexes)
	return err
}
