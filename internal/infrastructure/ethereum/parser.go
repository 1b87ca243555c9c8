package ethereum

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransferEventSignature is the keccak256 hash of Transfer(address,address,uint256)
var TransferEventSignature = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// TokenTransfer is a decoded ERC-20 Transfer log. Addresses are lowercase.
type TokenTransfer struct {
	TxHash         string
	LogIndex       int
	BlockNumber    int64
	BlockTimestamp time.Time
	TokenAddress   string
	FromAddress    string
	ToAddress      string
	Value          *big.Int
}

// Direction reports whether the transfer moved tokens into or out of wallet.
// Self-transfers and unrelated transfers report neither.
func (t TokenTransfer) Direction(wallet string) (incoming, outgoing bool) {
	wallet = strings.ToLower(wallet)
	if t.FromAddress == t.ToAddress {
		return false, false
	}
	return t.ToAddress == wallet, t.FromAddress == wallet
}

// ParseTransferEvent decodes a raw log into a TokenTransfer
func ParseTransferEvent(log types.Log, blockTimestamp time.Time) (*TokenTransfer, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
	}

	if log.Topics[0] != TransferEventSignature {
		return nil, fmt.Errorf("not a Transfer event")
	}

	// indexed from/to are left-padded to 32 bytes
	fromAddress := common.BytesToAddress(log.Topics[1].Bytes())
	toAddress := common.BytesToAddress(log.Topics[2].Bytes())

	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}

	return &TokenTransfer{
		TxHash:         log.TxHash.Hex(),
		LogIndex:       int(log.Index),
		BlockNumber:    int64(log.BlockNumber),
		BlockTimestamp: blockTimestamp,
		TokenAddress:   strings.ToLower(log.Address.Hex()),
		FromAddress:    strings.ToLower(fromAddress.Hex()),
		ToAddress:      strings.ToLower(toAddress.Hex()),
		Value:          new(big.Int).SetBytes(log.Data),
	}, nil
}

// ParseTransferLogs decodes logs that have a known block timestamp.
// It returns the decoded transfers and the indices of logs it had to skip.
func ParseTransferLogs(logs []types.Log, blockTimestamps map[uint64]time.Time) ([]TokenTransfer, []int) {
	transfers := make([]TokenTransfer, 0, len(logs))
	failedIndices := make([]int, 0)

	for i, log := range logs {
		timestamp, ok := blockTimestamps[log.BlockNumber]
		if !ok {
			failedIndices = append(failedIndices, i)
			continue
		}

		transfer, err := ParseTransferEvent(log, timestamp)
		if err != nil {
			failedIndices = append(failedIndices, i)
			continue
		}

		transfers = append(transfers, *transfer)
	}

	return transfers, failedIndices
}

// IsTransferEvent checks if a log is a Transfer event
func IsTransferEvent(log types.Log) bool {
	return len(log.Topics) == 3 && log.Topics[0] == TransferEventSignature
}
