package svm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// computeBudgetProgramID is the Solana Compute Budget program.
var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Compute budget applied to every exact-scheme transfer. The values leave
// generous headroom for a TransferChecked plus the facilitator's own
// instructions.
const (
	computeUnitLimit      uint32 = 200_000
	computeUnitPriceMicro uint64 = 10_000
)

// BuildTransfer assembles a partially signed SPL token transfer. The payer
// signs with their key only; the fee payer slot stays unsigned for the
// facilitator to fill before submission. The result is the base64 wire form
// carried in the payment payload.
func BuildTransfer(payerKey solana.PrivateKey, mint, recipient solana.PublicKey, amount uint64, decimals uint8, feePayer solana.PublicKey, blockhash solana.Hash) (string, error) {
	payer := payerKey.PublicKey()

	sourceATA, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return "", fmt.Errorf("find source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return "", fmt.Errorf("find destination token account: %w", err)
	}

	transfer := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(decimals).
		SetSourceAccount(sourceATA).
		SetDestinationAccount(destATA).
		SetMintAccount(mint).
		SetOwnerAccount(payer).
		Build()

	instructions := []solana.Instruction{
		setComputeUnitLimit(computeUnitLimit),
		setComputeUnitPrice(computeUnitPriceMicro),
		transfer,
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &payerKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(txBytes), nil
}

// setComputeUnitLimit encodes [discriminator=2, units u32 LE].
func setComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// setComputeUnitPrice encodes [discriminator=3, microlamports u64 LE].
func setComputeUnitPrice(microlamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microlamports)
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
