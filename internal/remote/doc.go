// Package remote holds the optional AWS side effects of a patch run:
// mirroring the backup copy to S3 and recording the patched document hash
// in SSM Parameter Store. Both are best effort; the local backup and the
// patched file do not depend on them.
package remote
