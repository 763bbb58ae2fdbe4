package pgstore

var AuditQuery = auditQuery
