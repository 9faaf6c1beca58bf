// Package s3 provides a storagedriver.StorageDriver implementation
// backed by Amazon S3 (or an S3-compatible endpoint), using the
// official aws client library.
//
// S3 is a key/value store, so directories are an abstraction: a path
// is a directory iff keys exist under its prefix, and Stat cannot
// report modification times for directories.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	storagedriver "github.com/akashica/akashica/storage/driver"
	"github.com/akashica/akashica/storage/driver/factory"
)

const driverName = "s3"

// listMax is the largest number of objects you can request from S3 in
// a single list call.
const listMax = 1000

// DriverParameters encapsulates all of the driver parameters after all
// values have been set.
type DriverParameters struct {
	AccessKey      string
	SecretKey      string
	SessionToken   string
	Bucket         string
	Region         string
	RegionEndpoint string
	ForcePathStyle bool
	Secure         bool
	RootDirectory  string
	StorageClass   string
}

func init() {
	factory.Register(driverName, &s3DriverFactory{})
}

// s3DriverFactory implements the factory.StorageDriverFactory
// interface.
type s3DriverFactory struct{}

func (f *s3DriverFactory) Create(ctx context.Context, parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	return FromParameters(parameters)
}

// Driver is a storagedriver.StorageDriver implementation backed by an
// S3 bucket. All provided paths are subpaths of the configured root
// directory prefix.
type Driver struct {
	s3            *s3.S3
	bucket        string
	rootDirectory string
	storageClass  string
}

var _ storagedriver.StorageDriver = &Driver{}

// FromParameters constructs a new Driver with a given parameters map.
// Required parameters:
// - bucket
// Optional parameters:
// - accesskey, secretkey, sessiontoken (default: IAM role credentials)
// - region, regionendpoint, forcepathstyle, secure
// - rootdirectory
// - storageclass
func FromParameters(parameters map[string]interface{}) (*Driver, error) {
	params := DriverParameters{
		Region:       "us-east-1",
		Secure:       true,
		StorageClass: s3.StorageClassStandard,
	}

	get := func(key string) string {
		if v, ok := parameters[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}

	params.Bucket = get("bucket")
	if params.Bucket == "" {
		return nil, fmt.Errorf("no bucket parameter provided")
	}
	params.AccessKey = get("accesskey")
	params.SecretKey = get("secretkey")
	params.SessionToken = get("sessiontoken")
	if v := get("region"); v != "" {
		params.Region = v
	}
	params.RegionEndpoint = get("regionendpoint")
	params.RootDirectory = get("rootdirectory")
	if v := get("storageclass"); v != "" {
		params.StorageClass = strings.ToUpper(v)
	}
	if v := get("forcepathstyle"); v != "" {
		params.ForcePathStyle = v == "true"
	}
	if v := get("secure"); v != "" {
		params.Secure = v == "true"
	}

	return New(params)
}

// New constructs a new Driver from explicit parameters.
func New(params DriverParameters) (*Driver, error) {
	awsConfig := aws.NewConfig().
		WithRegion(params.Region).
		WithDisableSSL(!params.Secure).
		WithS3ForcePathStyle(params.ForcePathStyle)
	if params.RegionEndpoint != "" {
		awsConfig = awsConfig.WithEndpoint(params.RegionEndpoint)
	}
	if params.AccessKey != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(
			params.AccessKey, params.SecretKey, params.SessionToken))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create new aws session: %w", err)
	}

	return &Driver{
		s3:            s3.New(sess),
		bucket:        params.Bucket,
		rootDirectory: params.RootDirectory,
		storageClass:  params.StorageClass,
	}, nil
}

func (d *Driver) Name() string {
	return driverName
}

// GetContent retrieves the content stored at "path" as a []byte.
func (d *Driver) GetContent(ctx context.Context, path string) ([]byte, error) {
	resp, err := d.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.s3Path(path)),
	})
	if err != nil {
		return nil, parseError(path, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// PutContent stores the []byte content at a location designated by
// "path".
func (d *Driver) PutContent(ctx context.Context, path string, content []byte) error {
	_, err := d.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(d.s3Path(path)),
		StorageClass: aws.String(d.storageClass),
		Body:         bytes.NewReader(content),
	})
	return parseError(path, err)
}

// Stat retrieves the FileInfo for the given path. HeadObject answers
// for files; a key which does not exist but has nested keys is a
// directory, detected with a one-entry list.
func (d *Driver) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	resp, err := d.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.s3Path(path)),
	})
	if err == nil {
		return storagedriver.FileInfoInternal{FileInfoFields: storagedriver.FileInfoFields{
			Path:    path,
			Size:    aws.Int64Value(resp.ContentLength),
			ModTime: aws.TimeValue(resp.LastModified),
		}}, nil
	}
	var awsErr awserr.Error
	if !errors.As(err, &awsErr) {
		return nil, err
	}

	prefix := d.s3Path(path)
	if prefix != "" {
		prefix += "/"
	}
	listResp, err := d.s3.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return nil, parseError(path, err)
	}
	if len(listResp.Contents) == 0 {
		return nil, storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}
	return storagedriver.FileInfoInternal{FileInfoFields: storagedriver.FileInfoFields{
		Path:  path,
		IsDir: true,
	}}, nil
}

// List returns a list of the objects that are direct descendants of
// the given path.
func (d *Driver) List(ctx context.Context, opath string) ([]string, error) {
	path := opath
	if path != "/" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	// When the driver's root prefix is empty, results must regain a
	// leading "/" to remain valid backend paths.
	prefix := ""
	if d.s3Path("") == "" {
		prefix = "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(d.s3Path(path)),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int64(listMax),
	}

	var files, directories []string
	for {
		resp, err := d.s3.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return nil, parseError(opath, err)
		}
		for _, key := range resp.Contents {
			files = append(files, strings.Replace(aws.StringValue(key.Key), d.s3Path(""), prefix, 1))
		}
		for _, commonPrefix := range resp.CommonPrefixes {
			cp := aws.StringValue(commonPrefix.Prefix)
			directories = append(directories, strings.Replace(cp[:len(cp)-1], d.s3Path(""), prefix, 1))
		}
		if !aws.BoolValue(resp.IsTruncated) {
			break
		}
		input.ContinuationToken = resp.NextContinuationToken
	}

	if opath != "/" && len(files) == 0 && len(directories) == 0 {
		// Treat an empty response as a missing directory; there are no
		// actual directories in s3.
		return nil, storagedriver.PathNotFoundError{Path: opath, DriverName: driverName}
	}
	return append(files, directories...), nil
}

// Move moves an object stored at sourcePath to destPath, removing the
// original object. aws has no actual move, so this is a server-side
// copy followed by a delete.
func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	_, err := d.s3.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:       aws.String(d.bucket),
		Key:          aws.String(d.s3Path(destPath)),
		StorageClass: aws.String(d.storageClass),
		CopySource:   aws.String(d.bucket + "/" + d.s3Path(sourcePath)),
	})
	if err != nil {
		return parseError(sourcePath, err)
	}
	return d.Delete(ctx, sourcePath)
}

// Delete recursively deletes all objects stored at "path" and its
// subpaths, batching deletions at the list page size.
func (d *Driver) Delete(ctx context.Context, path string) error {
	s3Path := d.s3Path(path)
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.bucket),
		Prefix:  aws.String(s3Path),
		MaxKeys: aws.Int64(listMax),
	}

	found := false
	for {
		resp, err := d.s3.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return parseError(path, err)
		}

		objects := make([]*s3.ObjectIdentifier, 0, len(resp.Contents))
		for _, key := range resp.Contents {
			k := aws.StringValue(key.Key)
			// Skip objects that merely share the prefix without being
			// the path itself or nested under it.
			if k != s3Path && !strings.HasPrefix(k, s3Path+"/") {
				continue
			}
			objects = append(objects, &s3.ObjectIdentifier{Key: key.Key})
		}
		if len(objects) > 0 {
			found = true
			_, err := d.s3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(d.bucket),
				Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(false)},
			})
			if err != nil {
				return err
			}
		}
		if !aws.BoolValue(resp.IsTruncated) {
			break
		}
		input.ContinuationToken = resp.NextContinuationToken
	}

	if !found {
		return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
	}
	return nil
}

// s3Path maps a backend path to a bucket key under the root prefix.
func (d *Driver) s3Path(path string) string {
	return strings.TrimLeft(strings.TrimRight(d.rootDirectory, "/")+path, "/")
}

func parseError(path string, err error) error {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return storagedriver.PathNotFoundError{Path: path, DriverName: driverName}
		}
	}
	return err
}
