// Package scan implements the sequential-ID discovery pipeline. A Processor
// drives a single vacancy ID through fetch, parse, company resolution, and
// persistence with bounded retries; a Scanner walks IDs forward one at a time,
// emitting progress events and announcing stored vacancies; a Controller
// serializes runs behind an explicit Idle/Running/StopRequested state machine.
package scan
