// Package cloudmetrics optionally exports meter values to AWS CloudWatch,
// giving ops visibility into a running reelforge-server instance (master
// loudness, true peak, voice pool occupancy) the way a hosted service
// would monitor any other production workload.
package cloudmetrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/reelforge/engine/internal/metering"
	"github.com/reelforge/engine/internal/rflog"
	"github.com/reelforge/engine/internal/voicepool"
)

// Namespace is the CloudWatch metric namespace every exported datum uses.
const Namespace = "Reelforge/Engine"

// Exporter periodically publishes a snapshot of engine meter values to
// CloudWatch. Disabled entirely if no AWS config/credentials are present;
// the caller decides whether to construct one at all.
type Exporter struct {
	client    *cloudwatch.Client
	instance  string
	interval  time.Duration
}

// New loads the default AWS config (environment/shared config/IMDS) and
// constructs an Exporter tagged with instance as a CloudWatch dimension.
func New(ctx context.Context, instance string, interval time.Duration) (*Exporter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		client:   cloudwatch.NewFromConfig(cfg),
		instance: instance,
		interval: interval,
	}, nil
}

// Run blocks, publishing a snapshot every interval until ctx is canceled.
func (ex *Exporter) Run(ctx context.Context, master *metering.Master, voices *voicepool.Pool) {
	log := rflog.With("cloudmetrics")
	ticker := time.NewTicker(ex.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ex.publish(ctx, master, voices); err != nil {
				log.Warn("cloudwatch publish failed", "error", err)
			}
		}
	}
}

func (ex *Exporter) publish(ctx context.Context, master *metering.Master, voices *voicepool.Pool) error {
	dims := []cwtypes.Dimension{{Name: aws.String("Instance"), Value: aws.String(ex.instance)}}
	stats := voices.Stats()

	data := []cwtypes.MetricDatum{
		metricDatum("MasterPeakL", master.PeakL(), cwtypes.StandardUnitNone, dims),
		metricDatum("MasterPeakR", master.PeakR(), cwtypes.StandardUnitNone, dims),
		metricDatum("MasterRMSL", master.RMSL(), cwtypes.StandardUnitNone, dims),
		metricDatum("MasterRMSR", master.RMSR(), cwtypes.StandardUnitNone, dims),
		metricDatum("LUFSIntegrated", master.LUFSIntegrated(), cwtypes.StandardUnitNone, dims),
		metricDatum("TruePeakL", master.TruePeakL(), cwtypes.StandardUnitNone, dims),
		metricDatum("TruePeakR", master.TruePeakR(), cwtypes.StandardUnitNone, dims),
		metricDatum("Correlation", master.Correlation(), cwtypes.StandardUnitNone, dims),
		metricDatum("ActiveVoices", float64(stats.ActiveCount), cwtypes.StandardUnitCount, dims),
	}

	_, err := ex.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(Namespace),
		MetricData: data,
	})
	return err
}

func metricDatum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
		Timestamp:  aws.Time(time.Now()),
	}
}
