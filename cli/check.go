package cli

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	mrand "math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	checkEndpoint string
	checkAccess   string
	checkSecret   string
	checkRegion   string
	checkBucket   string
	checkSize     string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "round-trip payloads through a running gateway",
	Long: "check creates a scratch bucket on a running gateway, round-trips\n" +
		"a single-shot object and a multipart object through it with the aws\n" +
		"sdk, verifies payloads and etags, and cleans up after itself.",
	Run: checkRun,
}

func checkRun(cmd *cobra.Command, args []string) {
	if checkAccess == "" || checkSecret == "" {
		log.Fatal("requires both --access-key and --secret-key")
	}
	size, err := strconv.ParseInt(checkSize, 10, 64)
	if err != nil || size <= 0 {
		log.Fatalf("invalid payload size: %q", checkSize)
	}

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(checkRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(checkAccess, checkSecret, "")),
	)
	if err != nil {
		log.Fatal(err)
	}

	// The upload bodies are wrapped with progress readers and cannot be
	// rewound for payload hashing; sign them as unsigned payloads.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(checkEndpoint)
		o.UsePathStyle = true
		o.APIOptions = append(o.APIOptions, v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware)
	})

	if err := runCheck(ctx, client, size); err != nil {
		log.Fatal(err)
	}

	fmt.Println("check passed")
}

func runCheck(ctx context.Context, client *s3.Client, size int64) error {
	payload := make([]byte, size)
	mrand.New(mrand.NewSource(time.Now().UnixNano())).Read(payload)

	// 1. Create the scratch bucket.
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(checkBucket),
	}); err != nil {
		return errors.Wrapf(err, "create bucket %q failed", checkBucket)
	}

	// 2. Round-trip a single-shot object.
	if err := checkPutGet(ctx, client, "single", payload); err != nil {
		return err
	}

	// 3. Round-trip a multipart object through the consolidator.
	if err := checkMultipart(ctx, client, "multipart", payload); err != nil {
		return err
	}

	// 4. Clean up the scratch bucket.
	for _, key := range []string{"single", "multipart"} {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(checkBucket),
			Key:    aws.String(key),
		}); err != nil {
			return errors.Wrapf(err, "delete object %q failed", key)
		}
	}
	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(checkBucket),
	}); err != nil {
		return errors.Wrapf(err, "delete bucket %q failed", checkBucket)
	}

	return nil
}

// checkPutGet uploads the payload in one shot and reads it back.
func checkPutGet(ctx context.Context, client *s3.Client, key string, payload []byte) error {
	want := payloadMD5(payload)

	bar := progressbar.DefaultBytes(int64(len(payload)), "uploading "+key)
	pbReader := progressbar.NewReader(bytes.NewReader(payload), bar)

	put, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(checkBucket),
		Key:           aws.String(key),
		Body:          &pbReader,
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return errors.Wrapf(err, "put object %q failed", key)
	}
	if got := strings.Trim(aws.ToString(put.ETag), "\""); got != want {
		return errors.Errorf("put object %q: etag %s, expected %s", key, got, want)
	}

	return checkGet(ctx, client, key, want, int64(len(payload)))
}

// checkMultipart uploads the payload split in two parts and reads the
// consolidated object back.
func checkMultipart(ctx context.Context, client *s3.Client, key string, payload []byte) error {
	want := payloadMD5(payload)

	initiate, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(checkBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "initiate upload of %q failed", key)
	}
	uploadID := aws.ToString(initiate.UploadId)

	cut := len(payload) / 2
	completed := []types.CompletedPart{}
	bar := progressbar.DefaultBytes(int64(len(payload)), "uploading "+key)

	for i, part := range [][]byte{payload[:cut], payload[cut:]} {
		number := int32(i + 1)
		pbReader := progressbar.NewReader(bytes.NewReader(part), bar)

		resp, err := client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(checkBucket),
			Key:           aws.String(key),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(number),
			Body:          &pbReader,
			ContentLength: aws.Int64(int64(len(part))),
		})
		if err != nil {
			return errors.Wrapf(err, "upload part %d of %q failed", number, key)
		}

		completed = append(completed, types.CompletedPart{
			ETag:       resp.ETag,
			PartNumber: aws.Int32(number),
		})
	}

	complete, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(checkBucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return errors.Wrapf(err, "complete upload of %q failed", key)
	}
	if got := strings.Trim(aws.ToString(complete.ETag), "\""); got != want {
		return errors.Errorf("complete upload of %q: etag %s, expected %s", key, got, want)
	}

	return checkGet(ctx, client, key, want, int64(len(payload)))
}

// checkGet downloads an object and verifies length and content digest.
func checkGet(ctx context.Context, client *s3.Client, key, wantMD5 string, wantSize int64) error {
	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(checkBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "get object %q failed", key)
	}
	defer resp.Body.Close()

	bar := progressbar.DefaultBytes(aws.ToInt64(resp.ContentLength), "downloading "+key)
	pbReader := progressbar.NewReader(resp.Body, bar)

	hash := md5.New()
	n, err := io.Copy(hash, &pbReader)
	if err != nil {
		return errors.Wrapf(err, "read object %q failed", key)
	}

	if n != wantSize {
		return errors.Errorf("get object %q: read %d bytes, expected %d", key, n, wantSize)
	}
	if got := hex.EncodeToString(hash.Sum(nil)); got != wantMD5 {
		return errors.Errorf("get object %q: digest %s, expected %s", key, got, wantMD5)
	}
	if got := strings.Trim(aws.ToString(resp.ETag), "\""); got != wantMD5 {
		return errors.Errorf("get object %q: etag %s, expected %s", key, got, wantMD5)
	}

	return nil
}

func payloadMD5(payload []byte) string {
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

func init() {
	checkCmd.Flags().StringVarP(&checkEndpoint, "endpoint", "e", "http://localhost:"+config.Get("gw.port"), "endpoint of the gateway under check")
	checkCmd.Flags().StringVarP(&checkAccess, "access-key", "a", "", "access key the requests are signed with")
	checkCmd.Flags().StringVarP(&checkSecret, "secret-key", "s", "", "secret key the requests are signed with")
	checkCmd.Flags().StringVarP(&checkRegion, "region", "r", config.Get("gw.region"), "region name of the gateway")
	checkCmd.Flags().StringVarP(&checkBucket, "bucket", "", "pithos-check", "scratch bucket name")
	checkCmd.Flags().StringVarP(&checkSize, "size", "", "8388608", "payload size in bytes")
}
