// Package harness runs ledger scenarios end to end through the bridge.
//
// A scenario starts a fresh in-memory node, submits signed requests through
// the query facade, then drains the notification stream and checks both.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: sensor_lifecycle
//	description: "What this scenario validates"
//	keys:
//	  node: 0101...01    # ed25519 seeds, hex; "node" is required
//	  alice: 0202...02
//	steps:
//	  - action: create
//	    as: gov
//	    args: { schema_id: governance, namespace: plant, name: gov }
//	  - action: fact
//	    signer: alice
//	    args: { subject: $gov, payload: { members: [] } }
//	    expect: { state: processing, success: false }
//	  - action: approve
//	    args: { subject: $gov, accept: true }
//	assertions:
//	  - type: notification_order
//	    kinds: [new_subject, new_event, state_updated]
//	  - type: final_state
//	    subject: $gov
//	    expect: { members: [] }
//
// Inside args, "$name" resolves to the subject bound with "as: name" and
// "@name" resolves to the public key of the named signer.
//
// # Actions
//
//   - create: governance, schema_id, namespace, name, public_key (default @signer)
//   - fact: subject, payload
//   - transfer: subject, public_key
//   - eol: subject
//   - approve: subject, accept (default true); answers the oldest pending
//     approval of the subject
//
// # Assertion Types
//
//   - notification_contains: a notification with kind, and optionally subject and sn
//   - notification_order: kinds appear in this relative order
//   - notification_count: exactly count notifications of kind (and subject)
//   - final_state: subject properties contain expect; optional sn and active
//
// # Deterministic Testing
//
// Keys come from the scenario and signature timestamps from
// testutil.DeterministicClock, so every run produces the same identifiers.
// The trace replaces identifiers with labels ($gov, request#1, @alice) so
// golden files stay readable.
package harness
