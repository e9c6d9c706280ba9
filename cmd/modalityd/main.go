// Command modalityd runs a Modality node: it loads the node's identity and
// configuration, wires the contract log, predicate executor, and gossip
// transport together, applies commits received on the contract-commit topic,
// and blocks until interrupted. It does not start the consensus DAG or
// orderer; the configured scribe count is only logged. No sub-command CLI surface is provided (spec
// non-goal); flags cover the one-time identity bootstrap this binary needs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modality-network/modality-core/core"
	"github.com/modality-network/modality-core/pkg/config"
)

func main() {
	genIdentity := flag.Bool("gen-identity", false, "generate a new passfile at -passfile and exit")
	passfile := flag.String("passfile", "", "override the configured passfile path")
	passphrase := flag.String("passphrase", "", "passphrase protecting the passfile")
	flag.Parse()

	if *genIdentity {
		if err := runGenIdentity(*passfile, *passphrase); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := runNode(*passfile, *passphrase); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGenIdentity(passfile, passphrase string) error {
	if passfile == "" {
		passfile = "node.passfile"
	}
	kp, mnemonic, err := core.NewKeypair()
	if err != nil {
		return err
	}
	if err := core.SavePassfile(passfile, kp, passphrase); err != nil {
		return err
	}
	peerID, err := kp.PeerID()
	if err != nil {
		return err
	}
	fmt.Printf("peer id:  %s\n", peerID)
	fmt.Printf("mnemonic: %s\n", mnemonic)
	fmt.Printf("wrote passfile to %s\n", passfile)
	return nil
}

func runNode(passfileOverride, passphrase string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return core.Wrap(err, "load config")
	}
	passfile := cfg.Network.PassfilePath
	if passfileOverride != "" {
		passfile = passfileOverride
	}

	log := logrus.New()
	if level, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
		log.SetLevel(level)
	}

	kp, err := core.LoadPassfile(passfile, passphrase)
	if err != nil {
		return core.Wrap(err, "load node identity")
	}
	peerID, err := kp.PeerID()
	if err != nil {
		return core.Wrap(err, "derive peer id")
	}
	log.WithField("peer_id", peerID).Info("node identity loaded")

	executor, err := core.NewPredicateExecutor(log)
	if err != nil {
		return core.Wrap(err, "start predicate executor")
	}
	contract := core.NewContract(executor, log)

	gossip, err := core.NewLibp2pGossip(cfg.Network.ListenAddr, cfg.Network.BootstrapPeers, cfg.Network.DiscoveryTag, log)
	if err != nil {
		return core.Wrap(err, "start gossip transport")
	}
	defer gossip.Close()

	commits, err := gossip.Subscribe(core.TopicContractCommit)
	if err != nil {
		return core.Wrap(err, "subscribe to contract commits")
	}
	go func() {
		for raw := range commits {
			var commit core.Commit
			if err := json.Unmarshal(raw, &commit); err != nil {
				log.WithError(err).Warn("received malformed gossiped commit")
				continue
			}
			if err := contract.ApplyCommit(&commit, time.Now().Unix()); err != nil {
				log.WithError(err).Warn("rejected gossiped commit")
				continue
			}
			log.WithField("head", fmt.Sprintf("%x", contract.HeadHash().Bytes())).Debug("applied gossiped commit")
		}
	}()

	log.WithFields(logrus.Fields{
		"listen_addr": cfg.Network.ListenAddr,
		"scribes":     cfg.Consensus.ScribeCount,
	}).Info("modalityd running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}
