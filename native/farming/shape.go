package farming

// StakeShape is the balance layout of a stake record. Reward math only
// consumes Total; Add and Remove route amounts into the layout.
type StakeShape interface {
	Total() uint64
	Add(bucket BucketID, amount uint64) error
	Remove(bucket BucketID, amount uint64) error
	Balance(bucket BucketID) uint64
	Buckets() []StakeInput
	Clone() StakeShape
}

func newShape(kind PoolKind) StakeShape {
	if kind == KindBucketed {
		return newBucketShape()
	}
	return &scalarShape{}
}

// scalarShape holds a single fungible balance.
type scalarShape struct {
	amount uint64
}

func (s *scalarShape) Total() uint64 { return s.amount }

func (s *scalarShape) Add(_ BucketID, amount uint64) error {
	next, err := addUint64(s.amount, amount)
	if err != nil {
		return err
	}
	s.amount = next
	return nil
}

func (s *scalarShape) Remove(_ BucketID, amount uint64) error {
	if amount > s.amount {
		return ErrNotEnoughBalance
	}
	s.amount -= amount
	return nil
}

func (s *scalarShape) Balance(BucketID) uint64 { return s.amount }

func (s *scalarShape) Buckets() []StakeInput {
	if s.amount == 0 {
		return nil
	}
	return []StakeInput{{Amount: s.amount}}
}

func (s *scalarShape) Clone() StakeShape {
	clone := *s
	return &clone
}

// bucketShape partitions the balance by bucket, keeping buckets in the order
// they were first staked.
type bucketShape struct {
	balances map[BucketID]uint64
	order    []BucketID
	total    uint64
}

func newBucketShape() *bucketShape {
	return &bucketShape{balances: make(map[BucketID]uint64)}
}

func (s *bucketShape) Total() uint64 { return s.total }

func (s *bucketShape) Add(bucket BucketID, amount uint64) error {
	total, err := addUint64(s.total, amount)
	if err != nil {
		return err
	}
	current, ok := s.balances[bucket]
	next, err := addUint64(current, amount)
	if err != nil {
		return err
	}
	if !ok {
		s.order = append(s.order, bucket)
	}
	s.balances[bucket] = next
	s.total = total
	return nil
}

func (s *bucketShape) Remove(bucket BucketID, amount uint64) error {
	current, ok := s.balances[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	if amount > current {
		return ErrNotEnoughBalance
	}
	if amount == current {
		delete(s.balances, bucket)
		for i, id := range s.order {
			if id == bucket {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	} else {
		s.balances[bucket] = current - amount
	}
	s.total -= amount
	return nil
}

func (s *bucketShape) Balance(bucket BucketID) uint64 { return s.balances[bucket] }

func (s *bucketShape) Buckets() []StakeInput {
	out := make([]StakeInput, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, StakeInput{Bucket: id, Amount: s.balances[id]})
	}
	return out
}

func (s *bucketShape) Clone() StakeShape {
	clone := &bucketShape{
		balances: make(map[BucketID]uint64, len(s.balances)),
		order:    append([]BucketID(nil), s.order...),
		total:    s.total,
	}
	for id, amount := range s.balances {
		clone.balances[id] = amount
	}
	return clone
}
