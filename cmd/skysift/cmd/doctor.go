package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skysift/skysift/internal/config"
	"github.com/skysift/skysift/internal/embed"
	"github.com/skysift/skysift/internal/model"
	"github.com/skysift/skysift/internal/token"
)

// doctorCheck is one verification result.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify configuration and model artifacts",
		Long: `Run the same load-time checks the engine performs at startup.

Checks:
  - configuration loads and validates
  - vocabulary artifact decodes
  - normalization rule table parses
  - embedding table opens and its vocabulary size matches

Any failing check here would prevent the engine from starting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	var checks []doctorCheck
	add := func(name string, err error, okDetail string) bool {
		c := doctorCheck{Name: name, OK: err == nil, Detail: okDetail}
		if err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
		return err == nil
	}

	cfg, err := config.Load(".")
	if !add("config", err, "loaded and validated") {
		return renderDoctor(cmd, checks, jsonOutput)
	}

	var vocabSize int
	vocab, err := model.LoadVocabulary(cfg.Artifacts.VocabPath)
	if add("vocabulary", err, "") {
		vocabSize = vocab.Size()
		checks[len(checks)-1].Detail = fmt.Sprintf("%d entries", vocabSize)
	}

	rules, err := token.LoadRules(cfg.Artifacts.RulesPath)
	if add("normalization rules", err, "") {
		checks[len(checks)-1].Detail = fmt.Sprintf("%d rules", rules.Len())
	}

	table, err := embed.OpenTable(cfg.Artifacts.EmbeddingPath)
	if add("embedding table", err, "") {
		checks[len(checks)-1].Detail = fmt.Sprintf("%d rows, dim %d", table.VocabSize(), table.Dim())
		if vocabSize > 0 {
			_, err = embed.NewEmbedder(table, vocabSize)
			add("vocabulary/embedding match", err,
				fmt.Sprintf("both sized %d", vocabSize))
		}
		_ = table.Close()
	}

	return renderDoctor(cmd, checks, jsonOutput)
}

func renderDoctor(cmd *cobra.Command, checks []doctorCheck, jsonOutput bool) error {
	failed := 0
	for _, c := range checks {
		if !c.OK {
			failed++
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Checks []doctorCheck `json:"checks"`
			Failed int           `json:"failed"`
		}{checks, failed}); err != nil {
			return err
		}
	} else {
		for _, c := range checks {
			mark := "ok"
			if !c.OK {
				mark = "FAIL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-4s %s\n", c.Name, mark, c.Detail)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
