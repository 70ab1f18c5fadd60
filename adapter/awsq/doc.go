// Package awsq provides SQS and S3 transports for xclaim.
//
// Transport name: "aws" (both registries)
//
// Minimal config keys:
// - region: AWS region (default "us-east-1")
// - queue: SQS queue name (default "xclaim")
// - bucket: S3 bucket name (default "xclaim-payloads")
// - endpoint: override for localstack-style emulators (optional)
// - s3_path_style: force path-style S3 addressing (default false)
//
// Credentials come from the default AWS chain. Capability URIs are
// presigned GET URLs, so receive-only consumers need nothing but HTTP.
package awsq
