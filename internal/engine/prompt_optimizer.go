package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/extract"
)

// promptEvalContext tells the judge it is scoring a template through the
// output the template produced, not the output on its own merits.
const promptEvalContext = `The candidate was produced by executing an instruction template against a sample input. Score it as evidence of the template's effectiveness: weaknesses in the output indicate missing, vague, or counterproductive instructions in the template.`

// PromptConfig controls one instruction-template optimization run.
type PromptConfig struct {
	Template      string // instruction template under optimization
	SampleInput   string // representative input the template is executed against
	Dimensions    []core.Dimension
	MaxIterations int
	TargetScore   float64
}

type promptRewriteData struct {
	OverallScore float64
	Traces       []core.Trace
	PriorityFix  string
	Mutations    []core.Mutation
	Template     string
	SampleInput  string
	SampleOutput string
}

// OptimizePrompt improves an instruction template rather than content: each
// iteration executes the template against the sample input, scores the output
// it produced, and rewrites the template from the critique. Convergence and
// fail-soft behavior match Optimize; the candidate is always a string.
func OptimizePrompt(ctx context.Context, e *Engine, cfg PromptConfig) (core.OptimizationResult[string], error) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.TargetScore <= 0 {
		cfg.TargetScore = DefaultTargetScore
	}
	if len(cfg.Dimensions) == 0 {
		cfg.Dimensions = core.PromptQualityDimensions()
	}

	result := core.OptimizationResult[string]{Original: cfg.Template, Improved: cfg.Template}
	if strings.TrimSpace(cfg.Template) == "" {
		return result, errors.New("prompt optimization requires a non-empty template")
	}

	current := cfg.Template
	e.logger.Info("starting prompt optimization",
		"max_iterations", cfg.MaxIterations,
		"target_score", cfg.TargetScore)

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			result.Improved = current
			return result, err
		}

		instruction := executeTemplate(current, cfg.SampleInput)
		sampleOutput, err := e.service.Complete(ctx, "", instruction)
		if err != nil {
			result.Improved = current
			return result, core.NewServiceError("prompt_sample", err)
		}

		reflection, err := e.judge.Evaluate(ctx, sampleOutput, cfg.Dimensions, promptEvalContext)
		if err != nil {
			result.Improved = current
			return result, err
		}

		result.Iterations = iteration
		result.Reflections = append(result.Reflections, reflection)
		result.FinalScore = reflection.OverallScore / 10

		e.logger.Info("prompt evaluation pass finished",
			"iteration", iteration,
			"overall_score", reflection.OverallScore,
			"final_score", result.FinalScore)

		if result.FinalScore >= cfg.TargetScore {
			result.Improved = current
			return result, nil
		}

		directive, err := e.prompts.Render(promptRewriteTemplateName, promptRewriteTemplate, promptRewriteData{
			OverallScore: reflection.OverallScore,
			Traces:       reflection.Traces,
			PriorityFix:  reflection.PriorityFix,
			Mutations:    reflection.Mutations,
			Template:     current,
			SampleInput:  cfg.SampleInput,
			SampleOutput: sampleOutput,
		})
		if err != nil {
			result.Improved = current
			return result, fmt.Errorf("rendering prompt rewrite: %w", err)
		}

		response, err := e.service.Complete(ctx, promptRewriteSystemPrompt, directive)
		if err != nil {
			result.Improved = current
			return result, core.NewServiceError("prompt_rewrite", err)
		}

		revised := strings.TrimSpace(extract.Unfence(response))
		if revised == "" {
			e.logger.Warn("discarding empty template rewrite", "iteration", iteration)
			break
		}
		current = revised
		result.Improved = current
	}

	result.Improved = current
	return result, nil
}

// executeTemplate renders the candidate instruction template against the
// sample input. Templates that are not valid Go templates, or that never
// reference {{.Input}}, degrade to appending the input so the sample still
// reaches the model.
func executeTemplate(source, input string) string {
	tmpl, err := template.New("candidate").Parse(source)
	if err != nil {
		return joinInstruction(source, input)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{"Input": input}); err != nil {
		return joinInstruction(source, input)
	}
	rendered := buf.String()
	if input != "" && rendered == source {
		return joinInstruction(source, input)
	}
	return rendered
}

func joinInstruction(source, input string) string {
	if strings.TrimSpace(input) == "" {
		return source
	}
	return source + "\n\nINPUT:\n" + input
}
