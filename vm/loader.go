package vm

import "github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"

// ContractLoader resolves a deployed contract's compiled code from its
// on-chain address, the collaborator CallExternal needs to push a frame
// for a contract this transaction did not itself carry bytecode for.
type ContractLoader interface {
	LoadContract(address database.AccountID) (Contract, error)
}

// ContractRegistry is an in-memory ContractLoader, the shape a stateful
// executor is constructed with in tests and in the single-process node
// (a real deployment loads contracts out of the WorldState's Trie).
type ContractRegistry struct {
	contracts map[database.AccountID]Contract
}

// NewContractRegistry constructs an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{contracts: make(map[database.AccountID]Contract)}
}

// Register associates address with a compiled contract.
func (r *ContractRegistry) Register(address database.AccountID, c Contract) {
	r.contracts[address] = c
}

// LoadContract implements ContractLoader.
func (r *ContractRegistry) LoadContract(address database.AccountID) (Contract, error) {
	c, ok := r.contracts[address]
	if !ok {
		return Contract{}, NewExecutionError(ErrInvalidContractAddress, errUnknownContract(address))
	}
	return c, nil
}
