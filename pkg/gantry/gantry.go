// Package gantry provides a public API for embedding the gantry runtime.
//
// Example usage:
//
//	import "github.com/gantry-oss/gantry/pkg/gantry"
//
//	c, err := gantry.Open(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	sess, err := c.Sessions.Create("/work")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	reply, err := gantry.RunPrompt(context.Background(), c, sess.ID, "hello")
package gantry

import (
	"context"
	"errors"

	"github.com/gantry-oss/gantry/internal/config"
	"github.com/gantry-oss/gantry/internal/core"
)

// Config is the project configuration consumed by New.
type Config = config.Config

// Core is the wired runtime returned by Open and New.
type Core = core.Core

// ErrQueued reports that a prompt was queued behind an active turn
// instead of running inline. The prompt still runs when the active
// turn drains the session's backlog.
var ErrQueued = errors.New("prompt queued behind active turn")

// Open loads gantry.yaml from dir and wires a runtime around it. A
// missing config file yields the default configuration rooted at dir.
func Open(dir string) (*Core, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// New wires a runtime from an explicit configuration. A nil cfg uses
// the built-in defaults.
func New(cfg *Config) (*Core, error) {
	return core.New(cfg, nil)
}

// RunPrompt submits one prompt to a session and returns the response.
// If another turn is active on the session the prompt is queued and
// RunPrompt returns ErrQueued.
func RunPrompt(ctx context.Context, c *Core, sessionID, prompt string) (string, error) {
	res, err := c.Loop.Submit(ctx, sessionID, prompt, nil)
	if err != nil {
		return "", err
	}
	if res.Queued {
		return "", ErrQueued
	}
	return res.Result, nil
}
