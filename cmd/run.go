package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/model"
)

var (
	runCRMID   string
	runName    string
	runWebsite string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a brand overview for a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runCRMID == "" && runName == "" {
			return eris.New("either --crm-id or --name is required")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		company := model.Company{
			ID:      runCRMID,
			Name:    runName,
			Website: runWebsite,
		}

		// With a CRM record ID, the record is the source of truth for
		// name and website.
		if runCRMID != "" {
			if env.CRM == nil {
				return eris.New("--crm-id requires zoho credentials (OVERVIEW_ZOHO_REFRESH_TOKEN)")
			}
			record, err := env.CRM.GetRecord(ctx, runCRMID)
			if err != nil {
				return eris.Wrapf(err, "fetch CRM record %s", runCRMID)
			}
			company = record.Company()
		}

		result, err := env.Orchestrator.Run(ctx, company)
		if err != nil {
			return eris.Wrap(err, "overview run")
		}

		zap.L().Info("overview run finished",
			zap.String("company", company.Name),
			zap.Bool("insufficient_data", result.InsufficientData),
			zap.Bool("crm_updated", result.CRMUpdated),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCRMID, "crm-id", "", "Zoho CRM record ID")
	runCmd.Flags().StringVar(&runName, "name", "", "company name")
	runCmd.Flags().StringVar(&runWebsite, "website", "", "company website URL")
	rootCmd.AddCommand(runCmd)
}
