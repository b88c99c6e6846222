package blob

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"PMessenger/tools/errs"
	"PMessenger/tools/ids"
)

// Store keeps attachment and avatar bytes in GridFS. Rows in postgres hold
// only the locator; the bucket never learns about conversations.
type Store struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

func Open(ctx context.Context, uri, database, bucketName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, pkgerrors.Wrap(err, "ping mongo")
	}
	if bucketName == "" {
		bucketName = "attachments"
	}
	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open bucket")
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Save streams one blob in and returns its locator. Locators embed a
// snowflake so two uploads of "cat.png" never collide.
func (s *Store) Save(prefix, originalName, mimeType string, r io.Reader) (locator string, size int64, err error) {
	locator = prefix + "/" + ids.GenerateString() + "_" + sanitizeName(originalName)
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"mime_type":     mimeType,
		"original_name": originalName,
	})
	stream, err := s.bucket.OpenUploadStream(locator, opts)
	if err != nil {
		return "", 0, pkgerrors.Wrap(err, "open upload stream")
	}
	size, err = io.Copy(stream, r)
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, pkgerrors.Wrap(err, "write blob")
	}
	return locator, size, nil
}

// Fetch opens the blob for streaming out. Callers must close the reader.
func (s *Store) Fetch(locator string) (io.ReadCloser, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(locator)
	if err != nil {
		if pkgerrors.Is(err, gridfs.ErrFileNotFound) {
			return nil, errs.ErrNotFound.WithDetail("blob " + locator)
		}
		return nil, pkgerrors.Wrap(err, "open download stream")
	}
	return stream, nil
}

// Delete removes every revision stored under the locator.
func (s *Store) Delete(ctx context.Context, locator string) error {
	cursor, err := s.bucket.Find(bson.M{"filename": locator})
	if err != nil {
		return pkgerrors.Wrap(err, "find blob")
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var file struct {
			ID interface{} `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return pkgerrors.Wrap(err, "decode blob id")
		}
		if err := s.bucket.Delete(file.ID); err != nil {
			return pkgerrors.Wrap(err, "delete blob")
		}
	}
	return pkgerrors.Wrap(cursor.Err(), "scan blobs")
}

// SetStreamDeadline bounds blob reads/writes; GridFS streams carry no
// context of their own.
func (s *Store) SetStreamDeadline(d time.Duration) {
	_ = s.bucket.SetReadDeadline(time.Now().Add(d))
	_ = s.bucket.SetWriteDeadline(time.Now().Add(d))
}

// sanitizeName strips path components and characters that complicate
// content-disposition headers.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
