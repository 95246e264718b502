/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package nsrepo

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This repository reports its own domain errors through gRPC status codes
// even though it never touches the network: callers across this codebase
// already know how to branch on codes.Code, so reusing that vocabulary
// here avoids introducing a second error taxonomy just for this package.

// errDrained reports that Get was called, or was in progress, while the
// repository was draining. Per spec, this is a normal shutdown outcome the
// caller should treat as "try elsewhere," not a bug in either party.
func errDrained(table TableID) error {
	return status.Errorf(codes.Unavailable, "nsrepo: repository draining, table %q unavailable", table)
}

// errCancelled wraps a caller's own context cancellation/deadline during
// Get.
func errCancelled(table TableID, cause error) error {
	return status.Errorf(codes.Canceled, "nsrepo: get table %q cancelled: %v", table, cause)
}

// errConstructionFailed reports that the supplied NamespaceInterfaceBuilder
// returned an error.
func errConstructionFailed(table TableID, cause error) error {
	return status.Errorf(codes.Internal, "nsrepo: construct namespace interface for table %q: %v", table, cause)
}

// errInvariantViolation reports a broken invariant of this repository's
// state machine or usage contract. Its one use is AccessHandle.Release
// called twice on the same handle, which is a caller bug.
func errInvariantViolation(msg string) error {
	return status.Errorf(codes.Internal, "nsrepo: invariant violation: %s", msg)
}
