package bank

import (
	"errors"
	"slices"
	"sync"

	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/system"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/programs/token"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/syscall"
	"github.com/fortiblox/x1-tokenledger/pkg/svm/sysvar"
	"github.com/fortiblox/x1-tokenledger/pkg/types"
)

// ErrProgramNotFound indicates the instruction names an unregistered program.
var ErrProgramNotFound = errors.New("program not found")

// ProgramExecutor defines the interface for program execution.
type ProgramExecutor interface {
	// Execute runs one instruction against the accounts in ctx.
	Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error
}

// ProgramExecutorFunc is a function adapter for ProgramExecutor.
type ProgramExecutorFunc func(ctx *syscall.ExecutionContext, instruction *types.Instruction) error

// Execute implements ProgramExecutor.
func (f ProgramExecutorFunc) Execute(ctx *syscall.ExecutionContext, instruction *types.Instruction) error {
	return f(ctx, instruction)
}

// ProgramRegistry maps program IDs to their executors.
type ProgramRegistry struct {
	mu       sync.RWMutex
	programs map[types.Pubkey]ProgramExecutor
	names    map[types.Pubkey]string
}

// NewProgramRegistry creates an empty program registry.
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{
		programs: make(map[types.Pubkey]ProgramExecutor),
		names:    make(map[types.Pubkey]string),
	}
}

// RegisterProgram registers executor under id, replacing any previous one.
func (r *ProgramRegistry) RegisterProgram(id types.Pubkey, name string, executor ProgramExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = executor
	r.names[id] = name
}

// GetProgram returns the executor for the given program ID.
func (r *ProgramRegistry) GetProgram(id types.Pubkey) (ProgramExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.programs[id]
	return executor, ok
}

// GetProgramName returns the display name of a program, or its address
// when it was registered without one.
func (r *ProgramRegistry) GetProgramName(id types.Pubkey) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name := r.names[id]; name != "" {
		return name
	}
	return id.String()
}

// HasProgram checks if a program is registered.
func (r *ProgramRegistry) HasProgram(id types.Pubkey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.programs[id]
	return ok
}

// ListPrograms returns all registered program IDs in ascending order.
func (r *ProgramRegistry) ListPrograms() []types.Pubkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.Pubkey, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b types.Pubkey) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return ids
}

// Count returns the number of registered programs.
func (r *ProgramRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.programs)
}

// RegisterNativePrograms registers the system and token programs.
func RegisterNativePrograms(registry *ProgramRegistry, rent sysvar.Rent) {
	registry.RegisterProgram(types.SystemProgramID, "System Program", system.New(rent))
	registry.RegisterProgram(types.TokenProgramID, "Token Program", token.New())
}
