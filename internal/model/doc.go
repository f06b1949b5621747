// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared across the chat core:
// messages, attachments, stream metrics, model descriptors, and the
// conversation log.
//
// Messages are value types with a stable ID. During streaming the engine
// replaces the placeholder assistant message wholesale (same ID, new value)
// rather than mutating fields in place, so consumers can observe snapshots
// without synchronization.
package model
