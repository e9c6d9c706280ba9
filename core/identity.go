package core

// Peer identity: Ed25519 keypairs, self-describing multihash peer IDs, and
// an encrypted passfile for at-rest persistence. Grounded on the teacher's
// HDWallet (core/wallet.go) and XChaCha20-Poly1305 section of
// core/security.go, adapted from address-derivation to peer-ID derivation
// and from plaintext seed storage to an authenticated-encrypted passfile.

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// identityCodec is the multicodec tag for an Ed25519 public key. Nothing in
// this package uses it: PeerIDFromPublicKey wraps the key bytes in an
// identity multihash (multihash.IDENTITY) without a key-type tag.
const identityCodec = 0xed

// PeerID is a self-describing multihash of an Ed25519 public key.
type PeerID string

// PeerIDFromPublicKey derives a PeerID from an Ed25519 public key by
// wrapping it in an "identity" multihash (the hash "function" is the key
// bytes themselves) and base58-encoding the result, matching the libp2p
// peer-ID convention the teacher's network layer already speaks.
func PeerIDFromPublicKey(pub ed25519.PublicKey) (PeerID, error) {
	mh, err := multihash.Sum(pub, multihash.IDENTITY, -1)
	if err != nil {
		return "", Wrap(err, "derive peer id")
	}
	return PeerID(base58.Encode(mh)), nil
}

// PublicKey recovers the Ed25519 public key embedded in the peer ID.
func (p PeerID) PublicKey() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(p))
	if err != nil {
		return nil, Wrap(err, "decode peer id")
	}
	decoded, err := multihash.Decode(raw)
	if err != nil {
		return nil, Wrap(err, "decode multihash")
	}
	if decoded.Code != multihash.IDENTITY {
		return nil, fmt.Errorf("unexpected multihash code 0x%x", decoded.Code)
	}
	return ed25519.PublicKey(decoded.Digest), nil
}

func (p PeerID) String() string { return string(p) }

// multibaseEncode renders a peer ID using the self-describing multibase
// convention (base58btc, "z" prefix). It has no caller: commit signer maps
// key signatures by the plain base58 PeerID string.
func (p PeerID) multibaseEncode() (string, error) {
	raw, err := base58.Decode(string(p))
	if err != nil {
		return "", err
	}
	return multibase.Encode(multibase.Base58BTC, raw)
}

// Keypair is an Ed25519 identity held in memory.
type Keypair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewKeypair generates a fresh Ed25519 keypair and its BIP-39 mnemonic
// backup phrase, mirroring the teacher's NewRandomWallet.
func NewKeypair() (*Keypair, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, "", Wrap(err, "entropy")
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", Wrap(err, "mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), private: priv}, mnemonic, nil
}

// KeypairFromMnemonic reconstructs a keypair from its mnemonic backup.
func KeypairFromMnemonic(mnemonic, passphrase string) (*Keypair, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// PeerID derives the self-describing peer ID for this keypair.
func (k *Keypair) PeerID() (PeerID, error) { return PeerIDFromPublicKey(k.Public) }

// Sign produces a deterministic Ed25519 signature over msg.
func (k *Keypair) Sign(msg []byte) []byte { return ed25519.Sign(k.private, msg) }

// VerifySignature checks a signature against a raw Ed25519 public key.
func VerifySignature(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

//---------------------------------------------------------------------
// Passfile: encrypted-at-rest keypair persistence.
//---------------------------------------------------------------------

// passfile is the on-disk (encrypted) envelope for a single keypair.
type passfile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const passfileKeyLen = chacha20poly1305.KeySize

// deriveKey stretches a passphrase into a symmetric key via Argon2id, the
// same authenticated-encryption building block the teacher uses
// (XChaCha20-Poly1305 in core/security.go) fed by a memory-hard KDF instead
// of a raw passphrase so brute-forcing the passfile is expensive.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, passfileKeyLen)
}

// SavePassfile encrypts the keypair's raw seed under passphrase and writes
// it to path. Keypairs are "created once, persisted in an encrypted
// passfile, loaded on node start" per the data-model lifecycle.
func SavePassfile(path string, k *Keypair, passphrase string) error {
	salt := make([]byte, 16)
	if _, err := crand.Read(salt); err != nil {
		return Wrap(err, "salt")
	}
	key := deriveKey(passphrase, salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Wrap(err, "cipher init")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := crand.Read(nonce); err != nil {
		return Wrap(err, "nonce")
	}
	seed := k.private.Seed()
	ct := aead.Seal(nil, nonce, seed, nil)
	pf := passfile{Salt: salt, Nonce: nonce, Ciphertext: ct}
	b, err := json.Marshal(pf)
	if err != nil {
		return Wrap(err, "marshal passfile")
	}
	return os.WriteFile(path, b, 0600)
}

// LoadPassfile decrypts a keypair previously written by SavePassfile.
func LoadPassfile(path string, passphrase string) (*Keypair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Wrap(err, "read passfile")
	}
	var pf passfile
	if err := json.Unmarshal(b, &pf); err != nil {
		return nil, Wrap(err, "unmarshal passfile")
	}
	key := deriveKey(passphrase, pf.Salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, Wrap(err, "cipher init")
	}
	seed, err := aead.Open(nil, pf.Nonce, pf.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt passfile: wrong passphrase or corrupt file")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}
