// Package harness runs repository scenarios: YAML files that register a
// schema, write content through one or more sessions and then check query
// results against expectations.
//
// # Scenario Format
//
//	name: multiref_property_join
//	description: "What this scenario validates"
//	schema:
//	  - ../schema/sramp.cue
//	namespaces:
//	  sramp: "http://s-ramp.org/xmlns/2010/s-ramp#"
//	sessions:
//	  - nodes:
//	      - path: /artifact-a
//	        type: sramp:artifact
//	        properties:
//	          sramp:name: A
//	  - nodes:
//	      - path: /artifact-a/relatesTo
//	        type: sramp:relationship
//	        properties:
//	          sramp:type: relatesTo
//	          sramp:target: [ref:/artifact-b, ref:/artifact-c]
//	queries:
//	  - name: relates_to_targets
//	    statement: SELECT ...
//	    expect:
//	      rows: 1
//	      node_paths: [/artifact-a/relatesTo]
//	      values:
//	        target_jcr_uuid: [ref:/artifact-b, ref:/artifact-c]
//	assertions:
//	  - type: repeatable
//	    query: relates_to_targets
//	    times: 3
//
// Schema paths are relative to the scenario file. Each session adds its
// nodes in order, saves once and logs out. A property value of the form
// "ref:/path" is a reference to the node at that path; in expectations it
// stands for that node's identifier.
//
// # Expectations and Assertions
//
// A query's expect block checks the row count, the nodes returned by
// QueryResult.Nodes, the set of values a column takes over all rows, or the
// error code the query fails with. Assertions relate queries:
//
//   - repeatable: executing the query again yields identical rows
//   - same_values: two query columns take the same set of values
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory repository whose identifiers
// come from testutil.SequentialGenerator, so results contain the same
// identifiers on every run and can be compared with golden snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/multiref_property_join.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
