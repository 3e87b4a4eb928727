// Package objstore uploads merged media files to an S3-compatible object
// store. Failures are classified into the service error kinds so the
// upload stage can tell transient network conditions from permanent ones.
package objstore
