package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

var (
	processLeadID      string
	processSenderID    string
	processText        string
	processHistoryFile string
	processSource      string
	processStatus      string
	processBudget      float64
	processIntent      string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single inbound message through the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		convo := model.ConversationContext{
			LeadID:   processLeadID,
			SenderID: processSenderID,
			Text:     processText,
			Lead: model.LeadProfile{
				Source: model.LeadSource(processSource),
				Status: model.LeadStatus(processStatus),
				Budget: processBudget,
				Intent: processIntent,
			},
		}

		if processHistoryFile != "" {
			data, err := os.ReadFile(processHistoryFile)
			if err != nil {
				return eris.Wrap(err, "read history file")
			}
			if err := json.Unmarshal(data, &convo.History); err != nil {
				return eris.Wrap(err, "parse history file")
			}
		}

		result := env.Pipeline.ProcessMessage(ctx, convo)

		zap.L().Info("message processed",
			zap.String("lead_id", convo.LeadID),
			zap.String("run_id", result.RunID),
			zap.Float64("quality", result.QualityScore),
			zap.Bool("appointment_intent", result.AppointmentIntent),
			zap.Int64("elapsed_ms", result.ProcessingTimeMs),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	processCmd.Flags().StringVar(&processLeadID, "lead-id", "", "lead identifier (required)")
	processCmd.Flags().StringVar(&processSenderID, "sender-id", "", "sender identifier")
	processCmd.Flags().StringVar(&processText, "text", "", "inbound message text (required)")
	processCmd.Flags().StringVar(&processHistoryFile, "history", "", "JSON file with prior conversation turns")
	processCmd.Flags().StringVar(&processSource, "source", "unknown", "lead source")
	processCmd.Flags().StringVar(&processStatus, "status", "new", "lead funnel status")
	processCmd.Flags().Float64Var(&processBudget, "budget", 0, "lead's stated budget")
	processCmd.Flags().StringVar(&processIntent, "intent", "", "lead's stated intent")
	_ = processCmd.MarkFlagRequired("lead-id")
	_ = processCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(processCmd)
}
