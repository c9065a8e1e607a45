package polly

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
)

// API is the subset of the AWS SDK Polly client used by Client.
type API interface {
	DescribeVoices(ctx context.Context, params *awspolly.DescribeVoicesInput, optFns ...func(*awspolly.Options)) (*awspolly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Settings is the immutable connection configuration handed to NewClient.
type Settings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint overrides the Polly endpoint (e.g. a local emulator).
	Endpoint string
	// MaxAttempts caps SDK retries; zero keeps the SDK default.
	MaxAttempts int
}

// Client wraps calls to AWS Polly.
type Client struct {
	api API
}

// NewClient builds a Polly client. Static keys are used when present,
// otherwise the SDK default credential chain resolves credentials.
func NewClient(ctx context.Context, s Settings) (*Client, error) {
	if s.Region == "" {
		return nil, fmt.Errorf("polly: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.Region),
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken),
		))
	}
	if s.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(s.MaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}

	api := awspolly.NewFromConfig(awsCfg, func(o *awspolly.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	})
	return NewClientWithAPI(api), nil
}

// NewClientWithAPI wraps an existing SDK client (or a test double).
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// DescribeVoices fetches every page of the voice catalog.
func (c *Client) DescribeVoices(ctx context.Context) ([]Voice, error) {
	var (
		voices    []Voice
		nextToken *string
	)
	for {
		out, err := c.api.DescribeVoices(ctx, &awspolly.DescribeVoicesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("polly: describe voices: %w", err)
		}
		for _, v := range out.Voices {
			voices = append(voices, voiceFromSDK(v))
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		nextToken = out.NextToken
	}
	return voices, nil
}

// SynthesizeSpeech issues a single SynthesizeSpeech call. The returned stream
// is not read; the caller owns it.
func (c *Client) SynthesizeSpeech(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("polly: text is required")
	}

	out, err := c.api.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Text:         aws.String(req.Text),
		TextType:     types.TextType(req.TextType),
		VoiceId:      types.VoiceId(req.VoiceID),
		OutputFormat: types.OutputFormat(req.OutputFormat),
		Engine:       types.Engine(req.Engine),
	})
	if err != nil {
		return nil, fmt.Errorf("polly: synthesize speech: %w", err)
	}

	return &SynthesizeResult{
		AudioStream:       out.AudioStream,
		ContentType:       aws.ToString(out.ContentType),
		RequestCharacters: int(out.RequestCharacters),
	}, nil
}

// ErrorCode extracts the Polly API error code from err, or "" when err did
// not originate from the service.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func voiceFromSDK(v types.Voice) Voice {
	out := Voice{
		Gender:       string(v.Gender),
		ID:           string(v.Id),
		LanguageCode: string(v.LanguageCode),
		LanguageName: aws.ToString(v.LanguageName),
		Name:         aws.ToString(v.Name),
	}
	for _, code := range v.AdditionalLanguageCodes {
		out.AdditionalLanguageCodes = append(out.AdditionalLanguageCodes, string(code))
	}
	out.SupportedEngines = make([]string, 0, len(v.SupportedEngines))
	for _, e := range v.SupportedEngines {
		out.SupportedEngines = append(out.SupportedEngines, string(e))
	}
	return out
}
