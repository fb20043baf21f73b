package blockchain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const (
	myKey           = "7c4c45907dec40c91bab3480c39032e90049f1a44f3e18c3e07c23e3273995cf"
	myWalletAddress = "04729aaee497f99ff7ed4da9b7a5c23912da6533783b5cee16839b1e2628bc3413672b407a68c7a15a6fe3ea238b16f26e7a35755e258a0b9fb3d007da7a2e9c94"
)

var fixtureTime = time.Date(2019, 5, 14, 11, 1, 58, 135000000, time.UTC)

func mustWallet(t *testing.T, key string) *Wallet {
	t.Helper()
	w, err := WalletFromHex(key)
	if err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	return w
}

func signedTransfer(t *testing.T, w *Wallet, to string, amount float64) *Transaction {
	t.Helper()
	tx := NewTransferAt(w.Address(), to, amount, fixtureTime)
	if err := tx.Sign(w.PrivateKey()); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

func TestNewTransfer(t *testing.T) {
	tx := NewTransferAt(myWalletAddress, "yourAddress", 10, fixtureTime)

	if tx.From() != myWalletAddress || tx.To() != "yourAddress" || tx.Amount() != 10 {
		t.Fatalf("unexpected fields: %s %s %v", tx.From(), tx.To(), tx.Amount())
	}
	if tx.Timestamp() != 1557831718135 {
		t.Fatalf("expected timestamp 1557831718135, got %d", tx.Timestamp())
	}
	if tx.Kind() != KindTransfer || tx.IsReward() {
		t.Fatalf("expected a transfer, got %s", tx.Kind())
	}
}

func TestTransactionHash(t *testing.T) {
	tx := NewTransferAt(myWalletAddress, "yourAddress", 10, fixtureTime)

	want := "eccc2293fc04b915da4d54897b566b34f47792e578ecac2e083d3e412c864933"
	if got := tx.Hash(); got != want {
		t.Fatalf("expected hash %s, got %s", want, got)
	}
	if tx.Signature() != "" {
		t.Fatalf("expected no signature, got %s", tx.Signature())
	}
}

func TestSignTransaction(t *testing.T) {
	w := mustWallet(t, myKey)
	if w.Address() != myWalletAddress {
		t.Fatalf("unexpected address %s", w.Address())
	}

	tx := signedTransfer(t, w, "yourAddress", 10)
	if tx.Signature() == "" {
		t.Fatal("expected a signature")
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("expected valid transaction, got %v", err)
	}
}

func TestSignWithOtherWallet(t *testing.T) {
	w := mustWallet(t, myKey)
	tx := NewTransferAt("WRONG_ADDR", "yourAddress", 10, fixtureTime)

	if err := tx.Sign(w.PrivateKey()); !errors.Is(err, ErrWrongSigningKey) {
		t.Fatalf("expected ErrWrongSigningKey, got %v", err)
	}
	if tx.Signature() != "" {
		t.Fatal("signature must stay empty after a failed sign")
	}
}

func TestSignReward(t *testing.T) {
	w := mustWallet(t, myKey)
	tx := NewRewardAt(w.Address(), 100, fixtureTime)

	if err := tx.Sign(w.PrivateKey()); !errors.Is(err, ErrWrongSigningKey) {
		t.Fatalf("expected ErrWrongSigningKey, got %v", err)
	}
}

func TestSignTwice(t *testing.T) {
	w := mustWallet(t, myKey)
	tx := signedTransfer(t, w, "yourAddress", 10)
	sig := tx.Signature()

	if err := tx.Sign(w.PrivateKey()); !errors.Is(err, ErrAlreadySigned) {
		t.Fatalf("expected ErrAlreadySigned, got %v", err)
	}
	if tx.Signature() != sig {
		t.Fatal("signature changed")
	}
}

func TestRewardIsAlwaysValid(t *testing.T) {
	tx := NewReward("yourAddress", 10)

	if err := tx.Validate(); err != nil {
		t.Fatalf("expected reward to be valid, got %v", err)
	}
	if !tx.IsValid() {
		t.Fatal("expected reward to be valid")
	}
}

func TestUnsignedTransaction(t *testing.T) {
	tx := NewTransferAt(myWalletAddress, "yourAddress", 10, fixtureTime)

	if err := tx.Validate(); !errors.Is(err, ErrUnsignedTransaction) {
		t.Fatalf("expected ErrUnsignedTransaction, got %v", err)
	}
}

func TestSignatureFromOtherTransaction(t *testing.T) {
	w := mustWallet(t, myKey)
	other := signedTransfer(t, w, "yourAddress", 100)

	tx := RestoreTransfer(myWalletAddress, "yourAddress", 10, fixtureTime.UnixMilli(), other.Signature())
	if err := tx.Validate(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if tx.IsValid() {
		t.Fatal("expected invalid transaction")
	}
}

func TestMalformedSignature(t *testing.T) {
	w := mustWallet(t, myKey)
	good := signedTransfer(t, w, "yourAddress", 10)

	cases := map[string]*Transaction{
		"not hex":         RestoreTransfer(myWalletAddress, "yourAddress", 10, good.Timestamp(), "zz"),
		"not der":         RestoreTransfer(myWalletAddress, "yourAddress", 10, good.Timestamp(), "00ff"),
		"bad sender":      RestoreTransfer("WRONG", "yourAddress", 10, good.Timestamp(), good.Signature()),
		"tampered amount": RestoreTransfer(myWalletAddress, "yourAddress", 11, good.Timestamp(), good.Signature()),
	}
	for name, tx := range cases {
		if err := tx.Validate(); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestTransactionJSON(t *testing.T) {
	reward := NewRewardAt("to", 123, time.UnixMilli(0))
	data, err := json.Marshal(reward)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `{"from":null,"to":"to","amount":123,"timestamp":0}`; string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}

	w := mustWallet(t, myKey)
	tx := signedTransfer(t, w, "yourAddress", 10.5)
	data, err = json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Transaction
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind() != KindTransfer || decoded.Hash() != tx.Hash() {
		t.Fatalf("decoded transaction differs: %+v", decoded)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("decoded transaction should verify: %v", err)
	}

	if err := json.Unmarshal([]byte(`{"from":null,"to":"x","amount":1,"timestamp":2}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.IsReward() {
		t.Fatal("expected null sender to decode as a reward")
	}
}

func TestAmountText(t *testing.T) {
	cases := map[float64]string{
		10:          "10",
		0:           "0",
		-10:         "-10",
		0.5:         "0.5",
		123456.125:  "123456.125",
		1e21:        "1e+21",
		1e-7:        "1e-7",
		0.000001:    "0.000001",
		100000000.0: "100000000",
	}
	for in, want := range cases {
		if got := amountText(in); got != want {
			t.Errorf("amountText(%v): expected %s, got %s", in, want, got)
		}
	}
}
