package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoredFile is an uploaded file materialized on local disk by the multipart decoder.
// Its name is generated, never taken from the client.
type StoredFile struct {
	ID           string // Generated identifier (UUID)
	Ext          string // Extension taken from the client file name, including the dot; may be empty
	Name         string // ID + Ext
	Dir          string // Absolute destination directory
	Path         string // Absolute path of the file on disk
	Size         int64  // Bytes actually written
	DeclaredType string // MIME type claimed by the client for the part
	OriginalName string // Client supplied file name, kept as metadata only
}

// Upload stores metadata about an accepted upload.
// The bytes live on local disk (and optionally in an S3 bucket).
type Upload struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FileName     string             `bson:"fileName" json:"fileName"`                         // Generated name on disk
	PublicPath   string             `bson:"publicPath" json:"publicPath"`                     // e.g. /temp/<uuid>.png
	OriginalName string             `bson:"originalName" json:"originalName"`                 // Original filename provided by client
	ContentType  string             `bson:"contentType" json:"contentType"`                   // Declared MIME type of the part
	Size         int64              `bson:"size" json:"size"`                                 // File size in bytes
	ObjectKey    string             `bson:"objectKey,omitempty" json:"-"`                     // S3 key when mirrored - internal use
	UploadedBy   string             `bson:"uploadedBy,omitempty" json:"uploadedBy,omitempty"` // Subject from the bearer token, if any
	Fields       map[string]string  `bson:"fields,omitempty" json:"fields,omitempty"`         // Ordinary form fields sent with the file
	UploadedAt   time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
