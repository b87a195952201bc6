// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package diag records one diagnostic Event per finished write transaction.
//
// It is separate from operational logging: a Sink receives the complete
// request and response bytes and the failure classification so that a
// failed write can be analysed afterwards.
//
//	sink := diag.NewMultiSink(
//	    diag.NewSlogSink(slog.Default()),
//	    fileSink, // diag.NewFileSink("/var/log/modbusbw/writes.cbor")
//	)
//
// Files are a stream of CBOR encoded events with integer keys.
package diag
