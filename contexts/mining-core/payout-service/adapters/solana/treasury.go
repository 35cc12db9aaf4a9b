package solanaadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 2 * time.Second
)

// Treasury pays rewards from a funded Solana account. Transfers are plain
// system-program SOL transfers, confirmed by polling signature status before
// the signature is handed back.
type Treasury struct {
	client         *rpc.Client
	payer          solana.PrivateKey
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

func NewTreasury(rpcURL string, payerKeyBase58 string, logger *slog.Logger) (*Treasury, error) {
	payer, err := solana.PrivateKeyFromBase58(payerKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("parse treasury private key: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Treasury{
		client:         rpc.New(rpcURL),
		payer:          payer,
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
		logger:         logger,
	}, nil
}

func (t *Treasury) Address() string {
	return t.payer.PublicKey().String()
}

func (t *Treasury) Balance(ctx context.Context) (uint64, error) {
	out, err := t.client.GetBalance(ctx, t.payer.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get treasury balance: %w", err)
	}
	return out.Value, nil
}

func (t *Treasury) Transfer(ctx context.Context, wallet string, lamports uint64) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return "", fmt.Errorf("parse recipient wallet %q: %w", wallet, err)
	}

	recent, err := t.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, t.payer.PublicKey(), recipient).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(t.payer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build transfer transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(t.payer.PublicKey()) {
			return &t.payer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transfer transaction: %w", err)
	}

	signature, err := t.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send transfer transaction: %w", err)
	}

	if err := t.awaitConfirmation(ctx, signature); err != nil {
		return "", err
	}

	t.logger.Info("treasury transfer confirmed",
		"event", "treasury_transfer_confirmed",
		"module", "mining-core/payout-service",
		"layer", "adapter",
		"wallet", wallet,
		"lamports", lamports,
		"signature", signature.String(),
	)
	return signature.String(), nil
}

func (t *Treasury) awaitConfirmation(ctx context.Context, signature solana.Signature) error {
	deadline := time.Now().Add(t.confirmTimeout)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		statuses, err := t.client.GetSignatureStatuses(ctx, true, signature)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", signature, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("transaction %s not confirmed within %s", signature, t.confirmTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
