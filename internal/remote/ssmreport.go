package remote

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/keithlinneman/htmlsplice/internal/log"
	"github.com/keithlinneman/htmlsplice/internal/xerrors"
)

// ParameterPutter is the subset of *ssm.Client used by SSMReporter.
type ParameterPutter interface {
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

type SSMReporterOptions struct {
	Logger log.Logger
	Client ParameterPutter
	Param  string
}

// SSMReporter stores the hash of the patched document so deploy tooling can
// tell which index.html revision is live.
type SSMReporter struct {
	opts   SSMReporterOptions
	logger log.Logger
}

func NewSSMReporter(opts SSMReporterOptions) (*SSMReporter, error) {
	if opts.Client == nil {
		return nil, xerrors.New("SSM client is required")
	}
	if opts.Param == "" {
		return nil, xerrors.New("SSM parameter name is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &SSMReporter{opts: opts, logger: opts.Logger}, nil
}

// Report overwrites the parameter with sha256 and returns the new version.
func (r *SSMReporter) Report(ctx context.Context, sha256 string) (int64, error) {
	if sha256 == "" {
		return 0, xerrors.New("refusing to report empty hash")
	}
	out, err := r.opts.Client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(r.opts.Param),
		Value:     aws.String(sha256),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return 0, xerrors.Wrapf(err, "put SSM parameter %s", r.opts.Param)
	}

	r.logger.Debug(ctx, "patched hash reported", "param", r.opts.Param, "version", out.Version)
	return out.Version, nil
}
