package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-review/internal/domain"
)

// PipelineStep represents a single step in the extraction pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	File         *domain.File
	FileBytes    []byte
	Request      ModelRequest
	RawReply     string
	Transactions []domain.Transaction
}

// ReadFileStep loads the document bytes.
type ReadFileStep struct {
	Files FileStore
}

func (s *ReadFileStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Files.ReadBytes(ctx, state.File.Filename)
	if err != nil {
		return &causeError{class: ErrFileRead, err: err}
	}
	state.FileBytes = data
	return nil
}

// BuildRequestStep encodes the document into a model request.
type BuildRequestStep struct{}

func (s *BuildRequestStep) Execute(ctx context.Context, state *PipelineState) error {
	req, ok := BuildRequest(state.File.MimeType, state.FileBytes)
	if !ok {
		return fmt.Errorf("BuildRequestStep: %s: %w", state.File.MimeType, ErrUnsupportedInput)
	}
	state.Request = req
	return nil
}

// CallModelStep sends the request to the document model.
type CallModelStep struct {
	Model DocumentModelClient
}

func (s *CallModelStep) Execute(ctx context.Context, state *PipelineState) error {
	reply, err := s.Model.Complete(ctx, state.Request)
	if err != nil {
		return &causeError{class: ErrTransport, err: err}
	}
	state.RawReply = reply
	return nil
}

// ParseResponseStep decodes the model reply.
type ParseResponseStep struct{}

func (s *ParseResponseStep) Execute(ctx context.Context, state *PipelineState) error {
	txs, err := ParseModelResponse(ctx, state.RawReply)
	if err != nil {
		logUnparseable(ctx, state.RawReply, err)
		return err
	}
	state.Transactions = txs
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewExtractionPipeline creates the standard 4-step extraction pipeline.
func NewExtractionPipeline(files FileStore, model DocumentModelClient) *Pipeline {
	return NewPipeline(
		&ReadFileStep{Files: files},
		&BuildRequestStep{},
		&CallModelStep{Model: model},
		&ParseResponseStep{},
	)
}

// causeError keeps a collaborator's own message, which is what gets stored on
// the file, while matching its failure class.
type causeError struct {
	class error
	err   error
}

func (e *causeError) Error() string { return e.err.Error() }

func (e *causeError) Unwrap() []error { return []error{e.class, e.err} }
