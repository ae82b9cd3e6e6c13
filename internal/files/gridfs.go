// Package files stores uploaded photos in MongoDB GridFS.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/student-stay/internal/backend"
)

// MaxFileBytes bounds a single upload.
const MaxFileBytes = 5 << 20

// File is a downloaded object.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store implements backend.Files on a GridFS bucket named "uploads".
type Store struct {
	db      *mongo.Database
	baseURL string
}

// Connect opens a Mongo client and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// NewStore returns a store in database dbName. URLs handed out point at
// baseURL + "/v1/files/<id>".
func NewStore(client *mongo.Client, dbName, baseURL string) *Store {
	return &Store{db: client.Database(dbName), baseURL: baseURL}
}

func (s *Store) bucket() (*gridfs.Bucket, error) {
	return gridfs.NewBucket(s.db, options.GridFSBucket().SetName("uploads"))
}

// URL returns the public address of file id.
func (s *Store) URL(id string) string { return s.baseURL + "/v1/files/" + id }

// UploadFile stores data under the base name of p and returns its URL.
func (s *Store) UploadFile(ctx context.Context, data []byte, p string) (string, error) {
	if len(data) == 0 || len(data) > MaxFileBytes {
		return "", fmt.Errorf("%w: file size %d", backend.ErrInvalidInput, len(data))
	}
	b, err := s.bucket()
	if err != nil {
		return "", err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = b.SetWriteDeadline(dl)
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"content_type": http.DetectContentType(data),
		"path":         p,
	})
	id, err := b.UploadFromStream(path.Base(p), bytes.NewReader(data), opts)
	if err != nil {
		return "", fmt.Errorf("gridfs upload: %w", err)
	}
	return s.URL(id.Hex()), nil
}

// Download reads file id.
func (s *Store) Download(ctx context.Context, id string) (File, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return File{}, backend.ErrNotFound
	}
	b, err := s.bucket()
	if err != nil {
		return File{}, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = b.SetReadDeadline(dl)
	}
	stream, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return File{}, backend.ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("gridfs download: %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return File{}, fmt.Errorf("gridfs download: %w", err)
	}
	f := File{Name: stream.GetFile().Name, Data: data, ContentType: "application/octet-stream"}
	if md := stream.GetFile().Metadata; md != nil {
		if ct, ok := md.Lookup("content_type").StringValueOK(); ok {
			f.ContentType = ct
		}
	}
	return f, nil
}
