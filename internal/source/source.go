// Package source loads JoyDoc documents from local files, standard input and
// S3, in JSON or YAML.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/joyfill/joydoc"
	"go.uber.org/zap"
)

// Stdin is the location that reads standard input.
const Stdin = "-"

// Format is the encoding of a loaded document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is a decoded document and where it came from.
type Document struct {
	Location string
	Format   Format
	Size     int
	// Tree is the generic JSON tree the validator consumes.
	Tree any
}

// ID returns the document's _id, if it has one.
func (d *Document) ID() string {
	if m, ok := d.Tree.(map[string]any); ok {
		if id, ok := m["_id"].(string); ok {
			return id
		}
	}
	return ""
}

// Source reads documents. S3 locations need an S3 client.
type Source struct {
	client   S3Client
	stdin    io.Reader
	maxBytes int64
	logger   *zap.Logger
}

// New creates a Source. client may be nil when S3 locations are not used.
func New(cfg joydoc.SourceConfig, client S3Client, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.L()
	}
	maxBytes := cfg.MaxDocumentBytes
	if maxBytes <= 0 {
		maxBytes = joydoc.DefaultConfig().Source.MaxDocumentBytes
	}
	return &Source{client: client, stdin: os.Stdin, maxBytes: maxBytes, logger: logger}
}

// WithStdin replaces the reader used for the "-" location.
func (s *Source) WithStdin(r io.Reader) *Source {
	s.stdin = r
	return s
}

// Load reads and decodes the document at location: "-" for standard input,
// s3://bucket/key for S3, anything else is a local path.
func (s *Source) Load(ctx context.Context, location string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case location == Stdin:
		data, err = s.readLimited(location, s.stdin)
	case strings.HasPrefix(location, "s3://"):
		data, err = s.loadS3(ctx, location)
	default:
		data, err = s.loadFile(location)
	}
	if err != nil {
		return nil, err
	}

	format := DetectFormat(location, data)
	tree, err := Decode(data, format)
	if err != nil {
		var decodeErr *joydoc.Error
		if errors.As(err, &decodeErr) {
			decodeErr.WithDetail("location", location)
		}
		return nil, err
	}

	s.logger.Debug("document loaded",
		zap.String("location", location),
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
	)
	return &Document{Location: location, Format: format, Size: len(data), Tree: tree}, nil
}

func (s *Source) loadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, joydoc.NewNotFoundError(joydoc.ErrCodeObjectNotFound,
				fmt.Sprintf("document %s does not exist", path)).WithCause(err)
		}
		return nil, joydoc.NewSourceError(path, "failed to open document", err)
	}
	defer f.Close()
	return s.readLimited(path, f)
}

func (s *Source) loadS3(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	if s.client == nil {
		return nil, joydoc.NewSourceError(location, "no S3 client configured", nil)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NoSuchKey", "NoSuchBucket", "NotFound":
				return nil, joydoc.NewNotFoundError(joydoc.ErrCodeObjectNotFound,
					fmt.Sprintf("document %s does not exist", location)).WithCause(err)
			}
		}
		return nil, joydoc.NewSourceError(location, "failed to get object", err)
	}
	defer out.Body.Close()
	return s.readLimited(location, out.Body)
}

func (s *Source) readLimited(location string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, joydoc.NewSourceError(location, "failed to read document", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, joydoc.NewSourceError(location,
			fmt.Sprintf("document exceeds %d bytes", s.maxBytes), nil)
	}
	return data, nil
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", joydoc.NewError(joydoc.ErrorTypeSource, joydoc.ErrCodeInvalidLocation,
			fmt.Sprintf("%q is not an s3:// location", location))
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", joydoc.NewError(joydoc.ErrorTypeSource, joydoc.ErrCodeInvalidLocation,
			fmt.Sprintf("%q must name a bucket and a key", location))
	}
	return bucket, key, nil
}

// DetectFormat picks YAML for .yaml/.yml paths and JSON for .json paths.
// Other locations are sniffed: JSON when the content opens with { or [.
func DetectFormat(location string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Decode turns data into a generic JSON tree.
func Decode(data []byte, format Format) (any, error) {
	if format == FormatYAML {
		return decodeYAML(data)
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, joydoc.NewDecodeError(joydoc.ErrCodeInvalidJSON, "malformed JSON", err)
	}
	return tree, nil
}

var documentExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// Expand replaces every local directory in locations with the JSON and YAML
// files it contains, recursively and in lexical order. Other locations are
// kept as given.
func Expand(locations []string) ([]string, error) {
	var out []string
	for _, loc := range locations {
		if loc == Stdin || strings.HasPrefix(loc, "s3://") {
			out = append(out, loc)
			continue
		}
		info, err := os.Stat(loc)
		if err != nil || !info.IsDir() {
			out = append(out, loc)
			continue
		}
		var found []string
		err = filepath.WalkDir(loc, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && documentExtensions[strings.ToLower(filepath.Ext(path))] {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, joydoc.NewSourceError(loc, "failed to list directory", err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
