package ecs

// takeBufferData pops pooled command arrays or allocates new ones. Owner goroutine only.
func (s *EntityStore) takeBufferData() *commandBufferData {
	n := len(s.bufferPool)
	if n == 0 {
		return newCommandBufferData()
	}
	data := s.bufferPool[n-1]
	s.bufferPool[n-1] = nil
	s.bufferPool = s.bufferPool[:n-1]
	return data
}

// returnBufferData puts reset command arrays back into the pool. Owner goroutine only.
func (s *EntityStore) returnBufferData(data *commandBufferData) {
	s.bufferPool = append(s.bufferPool, data)
}

// PooledBufferCount returns the number of command arrays waiting in the pool.
func (s *EntityStore) PooledBufferCount() int { return len(s.bufferPool) }
