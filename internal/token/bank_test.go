package token

import (
	"context"
	"errors"
	"testing"
)

func TestBankTransferFrom(t *testing.T) {
	bank := NewBank("bank", "custody")
	ctx := context.Background()

	bank.Mint("alice", 100)
	bank.Approve("alice", "custody", 60)

	if err := bank.TransferFrom(ctx, "alice", "custody", 40); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if balance, _ := bank.BalanceOf(ctx, "alice"); balance != 60 {
		t.Fatalf("alice = %d, want 60", balance)
	}
	if balance, _ := bank.BalanceOf(ctx, "custody"); balance != 40 {
		t.Fatalf("custody = %d, want 40", balance)
	}

	// 20 of the 60 allowance remains.
	if err := bank.TransferFrom(ctx, "alice", "custody", 30); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestBankTransferFromInsufficientFunds(t *testing.T) {
	bank := NewBank("bank", "custody")
	ctx := context.Background()

	bank.Mint("alice", 10)
	bank.Approve("alice", "custody", 100)

	if err := bank.TransferFrom(ctx, "alice", "custody", 50); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestBankTransfer(t *testing.T) {
	bank := NewBank("bank", "custody")
	ctx := context.Background()

	bank.Mint("custody", 100)
	if err := bank.Transfer(ctx, "bob", 70); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if balance, _ := bank.BalanceOf(ctx, "bob"); balance != 70 {
		t.Fatalf("bob = %d, want 70", balance)
	}

	if err := bank.Transfer(ctx, "bob", 70); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestHolder(t *testing.T) {
	var h Holder
	if h.Get() != nil {
		t.Fatal("empty holder should return nil")
	}
	bank := NewBank("bank", "custody")
	h.Set(bank)
	if h.Get() != Token(bank) {
		t.Fatal("holder should return the installed token")
	}
}
