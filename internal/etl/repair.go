package etl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"go.uber.org/zap"
)

type AthenaClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type RepairOptions struct {
	Database     string
	Table        string
	Workgroup    string
	Output       string // s3://bucket/prefix/
	MaxWait      time.Duration
	PollInterval time.Duration
}

type RepairResult struct {
	Ok        bool   `json:"ok"`
	QueryID   string `json:"query_id,omitempty"`
	State     string `json:"state,omitempty"`
	Database  string `json:"database,omitempty"`
	Table     string `json:"table,omitempty"`
	Workgroup string `json:"workgroup,omitempty"`
	Output    string `json:"output,omitempty"`
}

// Repairer runs MSCK REPAIR TABLE so new dt= partitions from the export become
// visible to Athena.
type Repairer struct {
	client AthenaClient
	opts   RepairOptions
	log    *zap.Logger
}

func NewRepairer(client AthenaClient, opts RepairOptions, log *zap.Logger) *Repairer {
	if opts.Workgroup == "" {
		opts.Workgroup = "primary"
	}
	if opts.MaxWait == 0 {
		opts.MaxWait = 60 * time.Second
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Repairer{client: client, opts: opts, log: log}
}

func (r *Repairer) Run(ctx context.Context) (RepairResult, error) {
	o := r.opts
	if o.Database == "" || o.Table == "" || o.Output == "" {
		return RepairResult{}, fmt.Errorf("missing env: ATHENA_DATABASE, ATHENA_TABLE, ATHENA_OUTPUT are required")
	}
	if !strings.HasPrefix(o.Output, "s3://") {
		return RepairResult{}, fmt.Errorf("ATHENA_OUTPUT must start with s3://")
	}

	startOut, err := r.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s;", o.Table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(o.Database),
		},
		WorkGroup: aws.String(o.Workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(o.Output),
		},
	})
	if err != nil {
		return RepairResult{}, fmt.Errorf("StartQueryExecution: %w", err)
	}

	qid := aws.ToString(startOut.QueryExecutionId)
	r.log.Info("repair started", zap.String("qid", qid), zap.String("table", o.Table))

	deadline := time.Now().Add(o.MaxWait)
	for time.Now().Before(deadline) {
		st, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return RepairResult{QueryID: qid}, fmt.Errorf("GetQueryExecution: %w", err)
		}
		state := st.QueryExecution.Status.State
		switch state {
		case athenatypes.QueryExecutionStateSucceeded:
			r.log.Info("repair succeeded", zap.String("qid", qid))
			return RepairResult{
				Ok:        true,
				QueryID:   qid,
				State:     string(state),
				Database:  o.Database,
				Table:     o.Table,
				Workgroup: o.Workgroup,
				Output:    o.Output,
			}, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(st.QueryExecution.Status.StateChangeReason)
			return RepairResult{QueryID: qid, State: string(state)}, fmt.Errorf("repair %s: %s", state, reason)
		}

		select {
		case <-ctx.Done():
			return RepairResult{QueryID: qid, State: "CANCELLED"}, ctx.Err()
		case <-time.After(o.PollInterval):
		}
	}

	return RepairResult{QueryID: qid, State: "TIMEOUT"}, fmt.Errorf("repair timed out waiting for qid=%s", qid)
}
