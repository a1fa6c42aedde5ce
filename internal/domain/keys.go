package domain

// KeyPrefix is the default namespace for every key vecgraph writes to Redis.
const KeyPrefix = "vecgraph:"
