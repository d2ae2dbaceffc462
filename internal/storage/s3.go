package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cloo-solutions/docqa/internal/domain"
)

// S3ClientConfig holds configuration for AnalysisStore
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// AnalysisStore reads analyzed documents from S3-compatible storage (e.g.,
// RustFS). Each document lives under documents/{id}/ as document.json and,
// once analyzed, analysis.json.
type AnalysisStore struct {
	client *s3.Client
	bucket string
}

// NewAnalysisStore creates a new AnalysisStore with the given configuration
func NewAnalysisStore(ctx context.Context, cfg S3ClientConfig) (*AnalysisStore, error) {
	// Create custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	// Load AWS config
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &AnalysisStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func documentKey(id string) string { return "documents/" + id + "/document.json" }
func analysisKey(id string) string { return "documents/" + id + "/analysis.json" }

// GetDocument loads documents/{id}/document.json
func (c *AnalysisStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	if err := c.getJSON(ctx, documentKey(id), &d); err != nil {
		if errors.Is(err, errObjectNotFound) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if d.ID == "" {
		d.ID = id
	}
	return &d, nil
}

// GetAnalysis loads documents/{id}/analysis.json. A missing analysis of a
// known document is domain.ErrAnalysisNotFound.
func (c *AnalysisStore) GetAnalysis(ctx context.Context, documentID string) (*domain.Analysis, error) {
	var a domain.Analysis
	err := c.getJSON(ctx, analysisKey(documentID), &a)
	if errors.Is(err, errObjectNotFound) {
		if _, derr := c.GetDocument(ctx, documentID); derr != nil {
			return nil, derr
		}
		return nil, domain.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.DocumentID == "" {
		a.DocumentID = documentID
	}
	if err := domain.ValidateAnalysis(&a); err != nil {
		return nil, fmt.Errorf("invalid analysis object for %s: %w", documentID, err)
	}
	return &a, nil
}

// PutDocument writes the document object
func (c *AnalysisStore) PutDocument(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}
	return c.putJSON(ctx, documentKey(d.ID), d)
}

// PutAnalysis writes the analysis object
func (c *AnalysisStore) PutAnalysis(ctx context.Context, a *domain.Analysis) error {
	if err := domain.ValidateAnalysis(a); err != nil {
		return domain.ErrMissingRequiredField.Wrap(err)
	}
	return c.putJSON(ctx, analysisKey(a.DocumentID), a)
}

// DeleteDocument removes both objects of a document
func (c *AnalysisStore) DeleteDocument(ctx context.Context, id string) error {
	for _, key := range []string{analysisKey(id), documentKey(id)} {
		input := &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		}
		if _, err := c.client.DeleteObject(ctx, input); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
	}
	return nil
}

var errObjectNotFound = errors.New("object not found")

func (c *AnalysisStore) getJSON(ctx context.Context, key string, v any) error {
	output, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return errObjectNotFound
		}
		return fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer output.Body.Close()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode object %s: %w", key, err)
	}
	return nil
}

func (c *AnalysisStore) putJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode object %s: %w", key, err)
	}
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}


// EnsureBucket creates the bucket if it doesn't exist
func (c *AnalysisStore) EnsureBucket(ctx context.Context) error {
	// Check if bucket exists
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil // Bucket exists
	}

	// Create bucket
	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
