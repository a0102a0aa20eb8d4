// Package logx configures regionsched's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Hot paths (tick loops, pool drops) rate limited via Throttled
package logx
