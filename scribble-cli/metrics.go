package scribblecli

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/rs/zerolog"
)

const metricsNamespace = "scribble-services"

// Recorder is the subset of Metrics the board components depend on.
type Recorder interface {
	Event(ctx context.Context, name MetricName, dimensions ...map[DimensionName]string)
	Timing(ctx context.Context, name MetricName, start time.Time, dimensions ...map[DimensionName]string)
	Gauge(ctx context.Context, name MetricName, value float64, dimensions ...map[DimensionName]string)
}

type Metrics struct {
	service    Service
	cloudwatch cloudwatchiface.CloudWatchAPI
}

func NewMetrics(service Service, cloudwatch cloudwatchiface.CloudWatchAPI) Metrics {
	return Metrics{
		service,
		cloudwatch,
	}
}

// BuildMetrics returns CloudWatch metrics for the service, or NopMetrics when
// running dry.
func BuildMetrics(service Service, s *session.Session) Recorder {
	if CommonOpts.Dry {
		return NopMetrics{}
	}
	return NewMetrics(service, cloudwatch.New(s))
}

type MetricName string

const (
	ResponseTimeMetric     MetricName = "ResponseTime"
	RequestMetric          MetricName = "Request"
	DeliveryFailureMetric  MetricName = "DeliveryFailure"
	LinesAppendedMetric    MetricName = "LinesAppended"
	BoardsCompactedMetric  MetricName = "BoardsCompacted"
	LinesCompactedMetric   MetricName = "LinesCompacted"
	CompactionFailedMetric MetricName = "CompactionFailed"
)

type DimensionName string

const (
	ServiceNameDimension    DimensionName = "Service"
	ServiceVersionDimension DimensionName = "Version"
	OperationNameDimension  DimensionName = "OperationName"
)

func defaultDimensions(service Service) map[DimensionName]string {
	return map[DimensionName]string{
		ServiceNameDimension:    service.Name,
		ServiceVersionDimension: service.Version,
	}
}

func mapToDimensions(ms ...map[DimensionName]string) []*cloudwatch.Dimension {
	var dimensions []*cloudwatch.Dimension
	for _, ds := range ms {
		for k, v := range ds {
			if v == "" {
				continue
			}
			dimensions = append(dimensions, &cloudwatch.Dimension{
				Name:  aws.String(string(k)),
				Value: aws.String(v),
			})
		}
	}
	return dimensions
}

func (m Metrics) put(ctx context.Context, name MetricName, unit string, value float64, dimensions []map[DimensionName]string) {
	awsDimensions := mapToDimensions(append(dimensions, defaultDimensions(m.service))...)
	_, err := m.cloudwatch.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(metricsNamespace),
		MetricData: []*cloudwatch.MetricDatum{
			{
				MetricName: aws.String(string(name)),
				Timestamp:  aws.Time(time.Now()),
				Unit:       aws.String(unit),
				Value:      aws.Float64(value),
				Dimensions: awsDimensions,
			},
		},
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("metric", string(name)).Msg("couldn't publish metric")
	}
}

func (m Metrics) Event(ctx context.Context, name MetricName, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitCount, 1, dimensions)
}

func (m Metrics) Timing(ctx context.Context, name MetricName, start time.Time, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitMilliseconds, float64(time.Since(start).Milliseconds()), dimensions)
}

func (m Metrics) Gauge(ctx context.Context, name MetricName, value float64, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitNone, value, dimensions)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Event(context.Context, MetricName, ...map[DimensionName]string) {}
func (NopMetrics) Timing(context.Context, MetricName, time.Time, ...map[DimensionName]string) {}
func (NopMetrics) Gauge(context.Context, MetricName, float64, ...map[DimensionName]string) {}

// Operation is shorthand for a single OperationName dimension.
func Operation(name string) map[DimensionName]string {
	return map[DimensionName]string{OperationNameDimension: name}
}
