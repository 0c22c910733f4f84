// Copyright 2018 The klaytn Authors
// Copyright 2016 The go-ethereum Authors
// This file is part of go-ethereum.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from node/defaults.go (2018/06/04).
// Modified and improved for the refill automation service.

package node

import "time"

// DefaultShutdownTimeout is a shutdown deadline for a single Lifecycle.
// Node.Stop does not apply it: it calls each Lifecycle's Stop in turn and
// waits for it to return, so any bound on shutdown time comes from the
// Lifecycle's own Stop.
const DefaultShutdownTimeout = 15 * time.Second
