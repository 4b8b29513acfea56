package ir

// EngineVersion is reported by `querykit --version`.
const EngineVersion = "0.1.0"
