// Package sql2 parses the JCR-SQL2 subset understood by the query engine
// into a queryir.Query.
//
//	SELECT artifact.[sramp:name], relationship.[sramp:target]
//	FROM [sramp:artifact] AS artifact
//	INNER JOIN [sramp:relationship] AS relationship
//	  ON ISCHILDNODE(relationship, artifact)
//	WHERE artifact.[sramp:name] = 'A'
//	ORDER BY artifact.[sramp:name] DESC
//
// Keywords are case-insensitive; names are not. Names containing ':' or
// other punctuation are written in square brackets. Every syntax problem,
// including trailing tokens such as an unbalanced ')', is reported as a
// *queryir.QueryError with code SYNTAX and the byte offset it was found at.
package sql2
